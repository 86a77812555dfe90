package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "forecastd/internal/api/http"
	"forecastd/internal/config"
	"forecastd/internal/fetcher"
	"forecastd/internal/forecast"
	"forecastd/internal/scheduler"
	"forecastd/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable forecast cache.
	sqlStore, err := store.New(ctx, store.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer sqlStore.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Network fetcher with its publish slot.
	client := fetcher.NewClient(httpClient, fetcher.Config{
		APIKey: cfg.OpenWeatherAPIKey,
		Lat:    cfg.Lat,
		Lon:    cfg.Lon,
	})

	// Coordinator mediating fetcher and store. Its Run loop is the single
	// lane all store mutations go through; start it before anything can
	// trigger a fetch.
	coordinator := forecast.NewCoordinator(sqlStore, client)
	go coordinator.Run(ctx)

	// Periodic trigger.
	sched := scheduler.New(cfg.FetchInterval, coordinator)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "forecastd",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Health endpoint with trigger/fetch diagnostics. Fetch failures stay
	// invisible to the forecast read API itself.
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":          "ok",
			"service":         "forecastd",
			"lastTriggeredAt": coordinator.LastTriggeredAt(),
			"fetchFailures":   client.Failures(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, coordinator)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
