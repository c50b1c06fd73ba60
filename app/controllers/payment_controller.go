package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/deckforge/DeckForge/internal/pkg/credits"
	"github.com/deckforge/DeckForge/internal/pkg/env"
	"github.com/deckforge/DeckForge/internal/pkg/payments"
)

// HandlePaymentWebhook receives gateway payment events. The signature is
// verified over the raw body before anything is parsed or persisted; retries
// of already-honored events return 200 so the gateway stops redelivering.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")
	if secret == "" {
		log.Print("payment webhook: PAYMENT_WEBHOOK_SECRET is not set")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Webhook secret is not configured"})
	}

	body := c.Body()
	if !payments.VerifyWebhookSignature(body, c.Get("X-Razorpay-Signature"), secret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook signature"})
	}

	evt, err := payments.ParseCapturedEvent(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	if evt == nil {
		// Event types other than captured payments are acknowledged unchanged.
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	result, err := getServices().Reconciler.Apply(c.Context(), payments.ApplyInput{
		TransactionID: evt.PaymentID,
		Email:         evt.Email,
		Amount:        evt.Amount,
		PlanType:      evt.PlanType,
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidClaimFormat) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed payment reference"})
		}
		if errors.Is(err, credits.ErrPersistenceUnavailable) {
			// Non-200 makes the gateway redeliver once the store is back.
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Entitlement store unavailable"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to apply payment"})
	}

	return c.JSON(result)
}
