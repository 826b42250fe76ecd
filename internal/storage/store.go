package storage

import (
	"errors"
	"time"

	"github.com/habitloop/habitloop-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// DueHabit is one (user, habit) pair whose reminder slot matches the
// current minute, joined with the owner's phone for delivery.
type DueHabit struct {
	UserID  uint
	Phone   string
	HabitID uint
	Title   string
}

// Store defines the interface for storage operations
type Store interface {
	// User operations
	EnsureUser(phone string) (*models.User, error)
	GetUserByPhone(phone string) (*models.User, error)
	SetUserPlan(phone, plan string) error
	CountUsers() (int64, error)
	CountActiveSince(since time.Time) (int64, error)
	CountCreatedSince(since time.Time) (int64, error)

	// Habit directory operations
	CreateHabit(userID uint, title string, slots []string) (*models.Habit, error)
	GetHabit(userID, habitID uint) (*models.Habit, error)
	ListActiveHabits(userID uint) ([]*models.Habit, error)
	ListDueHabits(slot string) ([]*DueHabit, error)
	CountActiveHabits(userID uint) (int64, error)
	DeleteHabit(userID, habitID uint) error
	ReplaceHabitSlots(userID, habitID uint, slots []string) error

	// Check-in ledger operations. EnsureCheckin is idempotent: a second
	// call for the same key is a no-op that reports created=false.
	EnsureCheckin(userID, habitID uint, day, slot string) (bool, error)
	FindCheckin(userID, habitID uint, day, slot string) (*models.Checkin, error)
	MarkCheckinDone(checkinID uint) error
	MarkCheckinMiss(checkinID uint, reason string) error
}
