package models

import (
	"gorm.io/gorm"
)

// Checkin statuses
const (
	CheckinStatusPending = "pending"
	CheckinStatusDone    = "done"
	CheckinStatusMiss    = "miss"
)

// SlotManual is the sentinel slot for user-initiated check-ins
const SlotManual = "manual"

// Checkin records that a habit was asked about on a given day at a given
// slot, and how the user answered. At most one row exists per
// (user, habit, day, slot) - the unique index is what makes reminder
// delivery idempotent.
type Checkin struct {
	gorm.Model

	UserID  uint   `json:"user_id" gorm:"uniqueIndex:idx_checkins_key"`
	HabitID uint   `json:"habit_id" gorm:"uniqueIndex:idx_checkins_key"`
	Day     string `json:"day" gorm:"uniqueIndex:idx_checkins_key"`  // "2006-01-02"
	Slot    string `json:"slot" gorm:"uniqueIndex:idx_checkins_key"` // "HH:MM" or "manual"
	Status  string `json:"status" gorm:"default:pending"`            // pending/done/miss
	Reason  string `json:"reason"`                                   // only meaningful when Status == miss
}
