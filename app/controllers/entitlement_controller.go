package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/deckforge/DeckForge/internal/pkg/credits"
)

var validate = validator.New()

type entitlementCheckRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleEntitlementCheck answers whether the given email may generate right
// now. Checking is free and has no side effect on the balance; first contact
// creates the record and starts the trial window.
func HandleEntitlementCheck(c *fiber.Ctx) error {
	var req entitlementCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "A valid email is required"})
	}

	decision, err := getServices().Accountant.CheckEntitlement(c.Context(), req.Email, GetClientIP(c))
	if err != nil {
		if errors.Is(err, credits.ErrPersistenceUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Entitlement store unavailable"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Entitlement check failed"})
	}

	return c.JSON(decision)
}
