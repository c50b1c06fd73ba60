package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/deckforge/DeckForge/internal/pkg/credits"
	"github.com/deckforge/DeckForge/internal/pkg/generator"
)

type generateRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Prompt     string `json:"prompt" validate:"required,min=3"`
	SlideCount int    `json:"slide_count" validate:"gte=0,lte=50"`
}

// HandleGenerate runs one entitlement-gated deck generation. Credits are only
// spent when a deck actually comes back.
func HandleGenerate(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Email and prompt are required"})
	}

	outcome, err := getServices().Generator.Generate(c.Context(), req.Email, GetClientIP(c), generator.Request{
		Prompt:     req.Prompt,
		SlideCount: req.SlideCount,
	})
	if err != nil {
		if errors.Is(err, credits.ErrPersistenceUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Entitlement store unavailable"})
		}
		// Provider failures and undeliverable decks cost the user nothing.
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "generation_failed", "message": "Deck generation failed, no credits were spent"})
	}

	if !outcome.Decision.Allowed {
		return c.Status(fiber.StatusPaymentRequired).JSON(outcome)
	}
	return c.JSON(outcome)
}
