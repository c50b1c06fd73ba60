package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/deckforge/DeckForge/internal/pkg/env"
)

// AdminKeyAuthMiddleware authenticates operator requests against the bcrypt
// hash stored in ADMIN_API_KEY_HASH. Only the hash lives in configuration;
// the plaintext key is handed to operators out of band.
func AdminKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		storedHash := env.GetEnv("ADMIN_API_KEY_HASH", "")
		if storedHash == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Admin access is not configured"})
		}

		key := extractAdminKeyFromHeader(c)
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing admin key"})
		}

		if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(key)); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid admin key"})
		}

		c.Locals("ADMIN_AUTHENTICATED", true)
		return c.Next()
	}
}

func extractAdminKeyFromHeader(c *fiber.Ctx) string {
	key := strings.TrimSpace(c.Get("X-Admin-Key"))
	if key != "" {
		return key
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
