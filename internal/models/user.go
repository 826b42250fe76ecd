package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Plan names
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Plan limits
const (
	FreeHabitLimit = 5
	ProHabitLimit  = 20

	FreeSlotsPerHabit = 10
	ProSlotsPerHabit  = 30
)

// User represents a WhatsApp user of the habit service
type User struct {
	gorm.Model

	Phone      string    `json:"phone" gorm:"uniqueIndex"` // WhatsApp number - unique
	Plan       string    `json:"plan" gorm:"default:free"` // "free" or "pro"
	LastSeenAt time.Time `json:"last_seen_at"`
}

// BeforeCreate hook to normalize data
func (u *User) BeforeCreate(tx *gorm.DB) error {
	// Normalize phone number (ensure it starts with +)
	if !strings.HasPrefix(u.Phone, "+") {
		u.Phone = "+" + u.Phone
	}

	if u.Plan == "" {
		u.Plan = PlanFree
	}

	return nil
}

// HabitLimit returns how many active habits the user's plan allows
func (u *User) HabitLimit() int {
	if u.Plan == PlanPro {
		return ProHabitLimit
	}
	return FreeHabitLimit
}

// SlotLimit returns how many reminder slots per habit the plan allows
func (u *User) SlotLimit() int {
	if u.Plan == PlanPro {
		return ProSlotsPerHabit
	}
	return FreeSlotsPerHabit
}
