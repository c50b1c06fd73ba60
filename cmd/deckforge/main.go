package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/deckforge/DeckForge/app/controllers"
	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/cache"
	"github.com/deckforge/DeckForge/internal/pkg/counter"
	"github.com/deckforge/DeckForge/internal/pkg/database"
	"github.com/deckforge/DeckForge/internal/pkg/env"
	"github.com/deckforge/DeckForge/internal/pkg/router"
)

func main() {
	app := NewApplication()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// drain generation counters into the entitlement records periodically
	go counter.RunFlusher(ctx, repository.GetGlobalRepositories().Entitlement, 60*time.Second)

	go func() {
		<-ctx.Done()
		if err := counter.Flush(repository.GetGlobalRepositories().Entitlement); err != nil {
			log.Printf("final counter flush failed: %v", err)
		}
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	controllers.InitServices()

	app := fiber.New(fiber.Config{
		AppName:   "DeckForge Entitlement Ledger",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
