package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/habitloop/habitloop-backend/internal/models"
)

// DatabaseStore implements Store on top of PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// User operations

func (s *DatabaseStore) EnsureUser(phone string) (*models.User, error) {
	user := &models.User{Phone: phone, Plan: models.PlanFree, LastSeenAt: time.Now()}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_seen_at": time.Now()}),
	}).Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	// Re-read so the caller sees the stored row (plan, created_at)
	return s.GetUserByPhone(phone)
}

func (s *DatabaseStore) GetUserByPhone(phone string) (*models.User, error) {
	var user models.User
	err := s.db.Where("phone = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *DatabaseStore) SetUserPlan(phone, plan string) error {
	result := s.db.Model(&models.User{}).Where("phone = ?", phone).Update("plan", plan)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) CountUsers() (int64, error) {
	var n int64
	err := s.db.Model(&models.User{}).Count(&n).Error
	return n, err
}

func (s *DatabaseStore) CountActiveSince(since time.Time) (int64, error) {
	var n int64
	err := s.db.Model(&models.User{}).Where("last_seen_at >= ?", since).Count(&n).Error
	return n, err
}

func (s *DatabaseStore) CountCreatedSince(since time.Time) (int64, error) {
	var n int64
	err := s.db.Model(&models.User{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

// Habit directory operations

func (s *DatabaseStore) CreateHabit(userID uint, title string, slots []string) (*models.Habit, error) {
	habit := &models.Habit{
		UserID:   userID,
		Title:    title,
		IsActive: true,
	}
	for _, t := range slots {
		habit.Slots = append(habit.Slots, models.HabitSlot{Time: t})
	}

	if err := s.db.Create(habit).Error; err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}
	return habit, nil
}

func (s *DatabaseStore) GetHabit(userID, habitID uint) (*models.Habit, error) {
	var habit models.Habit
	err := s.db.Preload("Slots").
		Where("id = ? AND user_id = ? AND is_active = ?", habitID, userID, true).
		First(&habit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &habit, nil
}

func (s *DatabaseStore) ListActiveHabits(userID uint) ([]*models.Habit, error) {
	var habits []*models.Habit
	err := s.db.Preload("Slots", func(db *gorm.DB) *gorm.DB {
		return db.Order("habit_slots.time")
	}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id").
		Find(&habits).Error
	if err != nil {
		return nil, err
	}
	return habits, nil
}

func (s *DatabaseStore) ListDueHabits(slot string) ([]*DueHabit, error) {
	var due []*DueHabit
	err := s.db.Model(&models.Habit{}).
		Select("habits.user_id, users.phone, habits.id AS habit_id, habits.title").
		Joins("JOIN habit_slots ON habit_slots.habit_id = habits.id AND habit_slots.deleted_at IS NULL").
		Joins("JOIN users ON users.id = habits.user_id AND users.deleted_at IS NULL").
		Where("habits.is_active = ? AND habit_slots.time = ?", true, slot).
		Order("habits.user_id, habits.id").
		Scan(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due habits: %w", err)
	}
	return due, nil
}

func (s *DatabaseStore) CountActiveHabits(userID uint) (int64, error) {
	var n int64
	err := s.db.Model(&models.Habit{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&n).Error
	return n, err
}

func (s *DatabaseStore) DeleteHabit(userID, habitID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", habitID, userID).Delete(&models.Habit{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("habit_id = ?", habitID).Delete(&models.HabitSlot{}).Error; err != nil {
			return err
		}
		return tx.Where("habit_id = ?", habitID).Delete(&models.Checkin{}).Error
	})
}

func (s *DatabaseStore) ReplaceHabitSlots(userID, habitID uint, slots []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var habit models.Habit
		err := tx.Where("id = ? AND user_id = ? AND is_active = ?", habitID, userID, true).
			First(&habit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Where("habit_id = ?", habitID).Delete(&models.HabitSlot{}).Error; err != nil {
			return err
		}
		for _, t := range slots {
			if err := tx.Create(&models.HabitSlot{HabitID: habitID, Time: t}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Check-in ledger operations

// EnsureCheckin inserts a pending check-in for the key unless one
// already exists. The conflict target is the composite unique index, so
// a duplicate insert is silently skipped and reported as created=false.
func (s *DatabaseStore) EnsureCheckin(userID, habitID uint, day, slot string) (bool, error) {
	checkin := &models.Checkin{
		UserID:  userID,
		HabitID: habitID,
		Day:     day,
		Slot:    slot,
		Status:  models.CheckinStatusPending,
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "habit_id"}, {Name: "day"}, {Name: "slot"},
		},
		DoNothing: true,
	}).Create(checkin)
	if result.Error != nil {
		return false, fmt.Errorf("failed to ensure checkin: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (s *DatabaseStore) FindCheckin(userID, habitID uint, day, slot string) (*models.Checkin, error) {
	var checkin models.Checkin
	err := s.db.Where("user_id = ? AND habit_id = ? AND day = ? AND slot = ?",
		userID, habitID, day, slot).First(&checkin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &checkin, nil
}

func (s *DatabaseStore) MarkCheckinDone(checkinID uint) error {
	result := s.db.Model(&models.Checkin{}).Where("id = ?", checkinID).
		Updates(map[string]interface{}{
			"status": models.CheckinStatusDone,
			"reason": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark checkin done: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) MarkCheckinMiss(checkinID uint, reason string) error {
	result := s.db.Model(&models.Checkin{}).Where("id = ?", checkinID).
		Updates(map[string]interface{}{
			"status": models.CheckinStatusMiss,
			"reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark checkin miss: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
