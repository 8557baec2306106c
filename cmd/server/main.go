package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/platewise/receipt-scan/internal/config"
	"github.com/platewise/receipt-scan/internal/handlers"
	"github.com/platewise/receipt-scan/internal/middleware"
	"github.com/platewise/receipt-scan/internal/services"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Load the nutrition knowledge table
	kb, err := services.NewKnowledgeBase()
	if err != nil {
		log.Fatalf("Failed to load knowledge table: %v", err)
	}
	log.Printf("Loaded nutrition knowledge table with %d keyword groups", kb.Len())

	estimator := services.NewEstimator(kb)
	vision := services.NewVisionService(cfg.VisionAPIURL, cfg.VisionModel, cfg.VisionTimeout)

	// Optional receipt image archive
	var archive *services.ArchiveService
	if cfg.ArchiveConfigured() {
		archive, err = services.NewArchiveService(
			cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL,
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize receipt archive: %v", err)
			archive = nil
		} else if err := archive.EnsureBucket(context.Background()); err != nil {
			log.Printf("Warning: Failed to ensure archive bucket exists: %v", err)
		}
		if archive != nil {
			log.Println("Receipt image archive initialized")
		}
	} else {
		log.Println("Receipt image archive not configured, scans will not be archived")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    12 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	scanHandler := handlers.NewScanHandler(cfg, vision, estimator, archive)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	// Receipt routes. Tokens are honored when present but never required;
	// the scan endpoint is public.
	receipt := api.Group("/receipt", middleware.AuthOptional(cfg))
	receipt.Post("/scan", scanHandler.Scan)
	receipt.Get("/scan", scanHandler.ScanInfo)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
