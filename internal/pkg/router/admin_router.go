package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deckforge/DeckForge/app/controllers"
	"github.com/deckforge/DeckForge/internal/pkg/constants"
	"github.com/deckforge/DeckForge/internal/pkg/middleware"
)

type AdminRouter struct {
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	admin := app.Group(constants.AdminRoute, middleware.AdminKeyAuthMiddleware())

	admin.Get(constants.AdminClaimsRoute, controllers.HandleAdminClaims)
	admin.Post(constants.AdminClaimDecideRoute, controllers.HandleClaimDecision)
	admin.Get(constants.AdminStatsRoute, controllers.HandleAdminStats)
	admin.Get(constants.AdminTransactionsRoute, controllers.HandleAdminTransactions)
	admin.Post(constants.AdminTransactionsExportRoute, controllers.HandleAdminTransactionsExport)
	admin.Post(constants.AdminResetRoute, controllers.HandleAdminReset)
}

func NewAdminRouter() *AdminRouter {
	return &AdminRouter{}
}
