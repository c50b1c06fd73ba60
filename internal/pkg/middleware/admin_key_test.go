package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAdminApp() *fiber.App {
	app := fiber.New()
	app.Get("/admin/ping", AdminKeyAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func adminRequest(t *testing.T, app *fiber.App, header, value string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestAdminKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein-ops"), bcrypt.MinCost)
	require.NoError(t, err)
	t.Setenv("ADMIN_API_KEY_HASH", string(hash))

	app := newAdminApp()

	assert.Equal(t, http.StatusOK, adminRequest(t, app, "X-Admin-Key", "letmein-ops"))
	assert.Equal(t, http.StatusOK, adminRequest(t, app, "Authorization", "Bearer letmein-ops"))
	assert.Equal(t, http.StatusUnauthorized, adminRequest(t, app, "X-Admin-Key", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, adminRequest(t, app, "", ""))
}

func TestAdminKeyAuthUnconfigured(t *testing.T) {
	t.Setenv("ADMIN_API_KEY_HASH", "")

	app := newAdminApp()
	assert.Equal(t, http.StatusServiceUnavailable, adminRequest(t, app, "X-Admin-Key", "anything"))
}
