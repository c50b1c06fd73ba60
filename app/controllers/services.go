package controllers

import (
	"sync"

	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/approval"
	"github.com/deckforge/DeckForge/internal/pkg/config"
	"github.com/deckforge/DeckForge/internal/pkg/credits"
	"github.com/deckforge/DeckForge/internal/pkg/generator"
	"github.com/deckforge/DeckForge/internal/pkg/mail"
	"github.com/deckforge/DeckForge/internal/pkg/payments"
)

// Services bundles the domain services the handlers dispatch into.
type Services struct {
	Accountant *credits.Service
	Generator  *generator.Service
	Reconciler *payments.Reconciler
	Claims     *approval.Queue
}

var (
	services     *Services
	servicesOnce sync.Once
)

// InitServices wires the domain services from the global repositories. Must
// run after database and cache setup.
func InitServices() {
	servicesOnce.Do(func() {
		repos := repository.GetGlobalRepositories()
		cfg := config.LoadLedger()

		accountant := credits.NewService(repos.Entitlement, credits.NewRedisSnapshots(), cfg)
		reconciler := payments.NewReconciler(repos.Transaction, accountant, cfg)

		services = &Services{
			Accountant: accountant,
			Generator:  generator.NewService(accountant, generator.NewHTTPProviderFromEnv()),
			Reconciler: reconciler,
			Claims:     approval.NewQueue(repos.PendingPayment, repos.Entitlement, reconciler, mail.NotifyClaimSubmitted),
		}
	})
}

// SetServicesForTesting replaces the service bundle. Test use only.
func SetServicesForTesting(s *Services) {
	services = s
}

func getServices() *Services {
	if services == nil {
		panic("Controller services not initialized. Call InitServices first.")
	}
	return services
}
