package handlers

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/habitloop/habitloop-backend/internal/models"
	"github.com/habitloop/habitloop-backend/internal/services"
	"github.com/habitloop/habitloop-backend/internal/storage"
)

// AdminHandler exposes operator endpoints
type AdminHandler struct {
	store    storage.Store
	sessions *services.SessionManager
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, sessions *services.SessionManager) *AdminHandler {
	return &AdminHandler{store: store, sessions: sessions}
}

// RequireAPIKey guards admin routes with the X-Admin-Key header
func RequireAPIKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := os.Getenv("ADMIN_API_KEY")
		if key == "" || c.Get("X-Admin-Key") != key {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

// GetStats returns user counts and live session info
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	total, err := h.store.CountUsers()
	if err != nil {
		return err
	}

	midnight := time.Now().Truncate(24 * time.Hour)
	activeToday, err := h.store.CountActiveSince(midnight)
	if err != nil {
		return err
	}
	newToday, err := h.store.CountCreatedSince(midnight)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"users": fiber.Map{
			"total":        total,
			"active_today": activeToday,
			"new_today":    newToday,
		},
		"sessions": fiber.Map{
			"active": h.sessions.ActiveSessionCount(),
		},
	})
}

// SetPlanRequest is the body for plan changes
type SetPlanRequest struct {
	Phone string `json:"phone"`
	Plan  string `json:"plan"`
}

// SetPlan switches a user between free and pro
func (h *AdminHandler) SetPlan(c *fiber.Ctx) error {
	var req SetPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Plan != models.PlanFree && req.Plan != models.PlanPro {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Plan must be free or pro",
		})
	}

	if err := h.store.SetUserPlan(req.Phone, req.Plan); err != nil {
		if err == storage.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"phone":   req.Phone,
		"plan":    req.Plan,
	})
}
