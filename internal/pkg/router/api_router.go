package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/deckforge/DeckForge/app/controllers"
	"github.com/deckforge/DeckForge/internal/pkg/cache"
	"github.com/deckforge/DeckForge/internal/pkg/constants"
	"github.com/deckforge/DeckForge/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		// Limiter state lives in Redis so the limit holds across instances.
		Storage: newLimiterStorage(),
	}))

	api.Post(constants.EntitlementCheckRoute, controllers.HandleEntitlementCheck)
	api.Post(constants.GenerateRoute, controllers.HandleGenerate)
	api.Post(constants.PaymentWebhookRoute, controllers.HandlePaymentWebhook)
	api.Post(constants.ClaimSubmitRoute, controllers.HandleClaimSubmit)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// newLimiterStorage builds a fiber storage on the same Redis the cache uses,
// in a separate database.
func newLimiterStorage() *redisstorage.Storage {
	host, port := "127.0.0.1", 6379
	if opts := cache.GetClient().Options(); opts != nil && opts.Addr != "" {
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 2,
		Reset:    false,
	})
}
