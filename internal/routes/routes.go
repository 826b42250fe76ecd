package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/habitloop/habitloop-backend/internal/handlers"
	"github.com/habitloop/habitloop-backend/internal/middleware"
	"github.com/habitloop/habitloop-backend/internal/services"
	"github.com/habitloop/habitloop-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, sessions *services.SessionManager, sender services.MessageSender) {
	whatsappService := services.NewWhatsAppService(store, sessions)
	whatsappHandler := handlers.NewWhatsAppHandler(whatsappService, sender)
	adminHandler := handlers.NewAdminHandler(store, sessions)

	// Twilio webhook; signature validation can be switched off for
	// local tunnels where the public URL doesn't match
	webhook := app.Group("/webhook")
	if os.Getenv("SKIP_TWILIO_SIGNATURE") != "true" {
		webhook.Use(middleware.ValidateTwilioSignature())
	}
	webhook.Post("/whatsapp", whatsappHandler.HandleWebhook)

	// Development webhook without Twilio
	app.Post("/test/whatsapp", whatsappHandler.HandleTestWebhook)

	// Admin API
	admin := app.Group("/admin", handlers.RequireAPIKey())
	admin.Get("/stats", adminHandler.GetStats)
	admin.Post("/plan", adminHandler.SetPlan)
}
