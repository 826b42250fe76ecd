package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/habitloop/habitloop-backend/database"
	"github.com/habitloop/habitloop-backend/internal/jobs"
	"github.com/habitloop/habitloop-backend/internal/models"
	"github.com/habitloop/habitloop-backend/internal/routes"
	"github.com/habitloop/habitloop-backend/internal/services"
	"github.com/habitloop/habitloop-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("DATABASE_URL") == "" {
		err := godotenv.Load(".env")
		if err != nil {
			err = godotenv.Load("environments/.env.development")
			if err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	// Get Twilio credentials
	twilioAccountSID := os.Getenv("TWILIO_ACCOUNT_SID")
	twilioAuthToken := os.Getenv("TWILIO_AUTH_TOKEN")
	twilioFrom := os.Getenv("TWILIO_WHATSAPP_FROM")

	if twilioAccountSID == "" || twilioAuthToken == "" || twilioFrom == "" {
		log.Println("⚠️  Twilio credentials not found - WhatsApp features will be limited")
	}

	// Initialize storage
	var store storage.Store

	// Check if we should use memory store (for testing)
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.User{},
			&models.Habit{},
			&models.HabitSlot{},
			&models.Checkin{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Initialize Twilio service
	twilioService, err := services.NewTwilioService()
	if err != nil {
		log.Fatal("Failed to initialize Twilio service:", err)
	}
	log.Println("✅ Twilio service initialized")

	// Set global instances
	storage.SetStore(store)
	services.SetTwilioService(twilioService)

	// Session orchestrator owns all per-user conversational state.
	// That state is process-local: a restart drops in-flight check-in
	// sessions, leaving their ledger rows pending.
	sessionManager := services.NewSessionManager(store, twilioService)
	services.SetSessionManager(sessionManager)

	// Start the minute trigger that matches habit slots to the clock
	checkinJob := jobs.NewCheckinJob(store, sessionManager)
	checkinJob.Start()

	log.Println("✅ All services initialized and check-in trigger started")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "HabitLoop Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check endpoint with database status
	app.Get("/", func(c *fiber.Ctx) error {
		response := fiber.Map{
			"service": "HabitLoop Backend API",
			"version": "1.0.0",
			"status":  "healthy",
			"storage": getStorageType(),
			"whatsapp": fiber.Map{
				"configured": twilioAccountSID != "",
			},
			"sessions": fiber.Map{
				"active": sessionManager.ActiveSessionCount(),
			},
		}

		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			sqlDB, err := database.DB.DB()
			dbStatus := "connected"
			if err != nil {
				dbStatus = "error: " + err.Error()
			} else if err := sqlDB.Ping(); err != nil {
				dbStatus = "error: " + err.Error()
			}

			var userCount, habitCount, checkinCount int64
			database.DB.Model(&models.User{}).Count(&userCount)
			database.DB.Model(&models.Habit{}).Count(&habitCount)
			database.DB.Model(&models.Checkin{}).Count(&checkinCount)

			response["database"] = fiber.Map{
				"status":   dbStatus,
				"users":    userCount,
				"habits":   habitCount,
				"checkins": checkinCount,
			}
		}

		return c.JSON(response)
	})

	// Health check endpoint for monitoring
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		statusCode := 200

		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			sqlDB, err := database.DB.DB()
			if err != nil || sqlDB.Ping() != nil {
				status = "unhealthy"
				statusCode = 503
			}
		}

		twilioHealthy := twilioService != nil && twilioAccountSID != ""

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"database": status == "healthy",
				"twilio":   twilioHealthy,
			},
		})
	})

	// Setup routes
	routes.SetupRoutes(app, store, sessionManager, twilioService)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping check-in trigger...")
		checkinJob.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 HabitLoop Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("📱 WhatsApp: %s", getWhatsAppStatus(twilioAccountSID))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getWhatsAppStatus(twilioSID string) string {
	if twilioSID == "" {
		return "Not configured"
	}
	return "Configured"
}
