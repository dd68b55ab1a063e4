package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"ministry-backend/internal/auth"
	"ministry-backend/internal/config"
	"ministry-backend/internal/engine"
	"ministry-backend/internal/metadata"
	"ministry-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s:%d/%s)", cfg.Server.Port, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Create schema and seed admin user
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap schema: %v", err)
	}
	log.Println("Schema ready")

	// 4. Load entity descriptors
	reg := metadata.NewRegistry()
	reg.Load(metadata.Schema())
	log.Printf("Loaded %d entity descriptors", len(reg.AllEntities()))

	// 5. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 6. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 7. Auth routes (no auth required)
	authHandler := auth.NewAuthHandler(db, cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, authHandler)

	// 8. Entity CRUD routes, optionally behind the bearer middleware
	engineHandler := engine.NewHandler(db, reg)
	if cfg.AuthRequired {
		engine.RegisterRoutes(app, engineHandler, auth.AuthMiddleware(cfg.JWTSecret))
	} else {
		engine.RegisterRoutes(app, engineHandler)
	}

	// 9. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(engine.ErrorResponse{
			Error: &engine.AppError{Code: "HTTP_ERROR", Message: fiberErr.Message},
		})
	}

	// Driver detail stays in the server log; clients get a generic body.
	log.Printf("ERROR: %v", err)
	if errors.Is(err, store.ErrUnavailable) {
		return c.Status(500).JSON(engine.ErrorResponse{Error: engine.DatabaseUnavailableError()})
	}
	return c.Status(500).JSON(engine.ErrorResponse{
		Error: &engine.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
