package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/habitloop/habitloop-backend/internal/services"
)

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	whatsappService *services.WhatsAppService
	sender          services.MessageSender
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(whatsappService *services.WhatsAppService, sender services.MessageSender) *WhatsAppHandler {
	return &WhatsAppHandler{
		whatsappService: whatsappService,
		sender:          sender,
	}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // WhatsApp number (whatsapp:+79876543210)
	To         string `form:"To"`   // Our Twilio number
	Body       string `form:"Body"` // Message text
	NumMedia   string `form:"NumMedia"`
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	log.Printf("📱 WhatsApp message from %s: %s", payload.From, payload.Body)

	// Process only incoming messages (not status updates)
	if payload.Body != "" && payload.From != "" {
		from := strings.TrimPrefix(payload.From, "whatsapp:")

		response, err := h.whatsappService.ProcessMessage(from, payload.Body)
		if err != nil {
			log.Printf("Error processing message: %v", err)
			response = "❌ Sorry, something went wrong. Please try again."
		}

		// Session replies are sent by the orchestrator itself; anything
		// the router returned goes out here
		if response != "" {
			if err := h.sender.SendMessage(from, response); err != nil {
				log.Printf("❌ Failed to send WhatsApp response: %v", err)
			}
		}
	}

	// Acknowledge webhook receipt
	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload is used to exercise the bot without Twilio
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook processes test WhatsApp messages (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	log.Printf("🧪 Test webhook received from %s: %s", payload.From, payload.Message)

	response, err := h.whatsappService.ProcessMessage(payload.From, payload.Message)
	if err != nil {
		log.Printf("Error processing message: %v", err)
		response = "❌ Sorry, something went wrong. Please try again."
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"response": response,
	})
}
