package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/deckforge/DeckForge/internal/pkg/approval"
	"github.com/deckforge/DeckForge/internal/pkg/credits"
	"github.com/deckforge/DeckForge/internal/pkg/hcaptcha"
	"github.com/deckforge/DeckForge/internal/pkg/payments"
)

type claimSubmitRequest struct {
	Email         string `json:"email" validate:"required,email"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PlanType      string `json:"plan_type"`
	CaptchaToken  string `json:"captcha_token"`
}

// HandleClaimSubmit accepts a manual payment claim for admin review. Nothing
// is credited here; the claim just enters the pending queue.
func HandleClaimSubmit(c *fiber.Ctx) error {
	var req claimSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Email, transaction reference and amount are required"})
	}

	if hcaptcha.Enabled() {
		if ok, err := hcaptcha.Verify(req.CaptchaToken); !ok {
			log.Printf("claim submission captcha rejected: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Captcha verification failed"})
		}
	}

	claim, err := getServices().Claims.Submit(c.Context(), approval.SubmitInput{
		Email:                req.Email,
		ClaimedTransactionID: req.TransactionID,
		ClaimedAmount:        req.Amount,
		PlanType:             req.PlanType,
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidClaimFormat) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Malformed claim"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store claim"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"uuid":         claim.UUID,
		"status":       claim.Status,
		"submitted_at": claim.SubmittedAt,
	})
}

type claimDecisionRequest struct {
	Decision  string `json:"decision" validate:"required"`
	DecidedBy string `json:"decided_by"`
}

// HandleClaimDecision applies an admin approve/reject to a pending claim.
// Deciding twice is safe: the stored outcome is returned and nothing is
// credited again.
func HandleClaimDecision(c *fiber.Ctx) error {
	claimID := c.Params("uuid")

	var req claimDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "A decision is required"})
	}

	result, err := getServices().Claims.Decide(c.Context(), claimID, req.Decision, req.DecidedBy)
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrClaimNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown claim"})
		case errors.Is(err, approval.ErrUnknownDecision):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Decision must be approve or reject"})
		case errors.Is(err, credits.ErrPersistenceUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Entitlement store unavailable"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to apply decision"})
		}
	}

	return c.JSON(result)
}
