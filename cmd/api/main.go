package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go-inventory-cost/internal/handler"
	"go-inventory-cost/internal/lock"
	"go-inventory-cost/internal/middleware"
	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/repository"
	"go-inventory-cost/internal/service"
	"go-inventory-cost/internal/ws"
	"go-inventory-cost/pkg/config"
	"go-inventory-cost/pkg/database"
	"go-inventory-cost/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load config
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	// 2. Setup Database
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	// 3. Locks: Redis when several instances share the database
	locker := newLocker(cfg, log)

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub(log)
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	repos := repository.NewSet(db)
	env := &service.Env{
		DB:     db,
		Locker: locker,
		Clock:  service.SystemClock{},
		Notify: wsHub,
		Log:    log,
	}
	resolver := service.NewCostResolver()

	itemService := service.NewItemService(env, repos)
	ledgerService := service.NewLedgerService(env, repos, resolver)
	assemblyService := service.NewAssemblyService(env, repos, resolver)
	inspectorService := service.NewInspectorService(env, repos, resolver)
	revaluationService := service.NewRevaluationService(env, repos, resolver)
	valuationService := service.NewValuationService(env, repos, resolver)

	handlers := handler.Handlers{
		Items:      handler.NewItemHandler(itemService),
		Ledger:     handler.NewLedgerHandler(ledgerService),
		Production: handler.NewProductionHandler(assemblyService),
		Costing:    handler.NewCostingHandler(inspectorService, revaluationService),
		Valuation:  handler.NewValuationHandler(valuationService),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Inventory Cost Engine v1.0",
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// 7. Routes
	api := app.Group("/api/v1")
	handler.Register(api, handlers, cfg.JWTSecret)

	// Privileges an actor token may carry
	api.Get("/privileges", middleware.RequireAuth(cfg.JWTSecret), func(c *fiber.Ctx) error {
		return c.JSON(model.DefaultPrivileges)
	})

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Panic("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}
	log.Info("Server exited")
}

func newLocker(cfg *config.Config, log *logrus.Logger) lock.Locker {
	if cfg.RedisAddress == "" {
		log.Info("REDIS_ADDRESS not set, using in-process locks")
		return lock.NewMemoryLocker()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Fatal("redis unreachable")
	}
	log.WithField("addr", cfg.RedisAddress).Info("Redis lock store connected")
	return lock.NewRedisLocker(rdb, cfg.LockTTL, log)
}
