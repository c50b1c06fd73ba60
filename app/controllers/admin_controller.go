package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/archive"
	"github.com/deckforge/DeckForge/internal/pkg/statistics"
)

// HandleAdminClaims lists payment claims, pending ones by default.
func HandleAdminClaims(c *fiber.Ctx) error {
	status := c.Query("status", models.ClaimStatusPending)
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	claims, err := repository.GetGlobalRepositories().PendingPayment.ListByStatus(status, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list claims"})
	}

	return c.JSON(fiber.Map{
		"status": status,
		"count":  len(claims),
		"claims": claims,
	})
}

// HandleAdminStats returns the cached dashboard aggregates.
func HandleAdminStats(c *fiber.Ctx) error {
	return c.JSON(statistics.GetStatisticsData())
}

// HandleAdminTransactions lists the credit-grant ledger, optionally filtered
// by email.
func HandleAdminTransactions(c *fiber.Ctx) error {
	repo := repository.GetGlobalRepositories().Transaction

	var (
		txs []models.Transaction
		err error
	)
	if email := c.Query("email"); email != "" {
		txs, err = repo.ListByEmail(models.NormalizeEmail(email))
	} else {
		txs, err = repo.ListAll()
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list transactions"})
	}

	return c.JSON(fiber.Map{
		"count":        len(txs),
		"transactions": txs,
	})
}

// HandleAdminTransactionsExport exports the ledger as CSV. With S3 archiving
// configured the object is uploaded and its key returned; otherwise the CSV
// is served directly.
func HandleAdminTransactionsExport(c *fiber.Ctx) error {
	repo := repository.GetGlobalRepositories().Transaction

	cfg, err := archive.LoadConfig()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error()})
	}

	if cfg.IsEnabled() {
		client, err := archive.NewClient(cfg)
		if err != nil {
			log.Printf("ledger export: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "archive_unavailable", "message": "Failed to reach the archive bucket"})
		}
		objectKey, err := client.ExportTransactions(c.Context(), repo)
		if err != nil {
			log.Printf("ledger export: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "archive_unavailable", "message": "Failed to upload the ledger export"})
		}
		return c.JSON(fiber.Map{"status": "uploaded", "object_key": objectKey})
	}

	txs, err := repo.ListAll()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to read transactions"})
	}
	payload, err := archive.TransactionsCSV(txs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to render CSV"})
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="transactions.csv"`)
	return c.Send(payload)
}

// HandleAdminReset wipes every entitlement record, ledger row and claim.
// Meant for staging environments; the confirm parameter is mandatory.
func HandleAdminReset(c *fiber.Ctx) error {
	if c.Query("confirm") != "true" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Pass confirm=true to wipe all ledger state"})
	}

	repos := repository.GetGlobalRepositories()
	if err := repos.PendingPayment.DeleteAll(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete claims"})
	}
	if err := repos.Transaction.DeleteAll(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete transactions"})
	}
	if err := repos.Entitlement.DeleteAll(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete entitlement records"})
	}

	statistics.ResetCacheUpdateTimer()
	log.Print("admin reset: all ledger state wiped")

	return c.JSON(fiber.Map{"status": "reset"})
}
