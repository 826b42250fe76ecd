package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/habitloop/habitloop-backend/internal/models"
)

// MemoryStore holds all data in memory (for tests and USE_MEMORY_STORE)
type MemoryStore struct {
	users    map[string]*models.User // keyed by phone
	habits   map[uint]*models.Habit
	checkins map[uint]*models.Checkin

	// checkinKeys enforces the (user, habit, day, slot) uniqueness the
	// database store gets from its unique index
	checkinKeys map[string]uint

	mu sync.RWMutex

	// Counters for ID generation
	userCounter    uint
	habitCounter   uint
	checkinCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*models.User),
		habits:      make(map[uint]*models.Habit),
		checkins:    make(map[uint]*models.Checkin),
		checkinKeys: make(map[string]uint),
	}
}

func checkinKey(userID, habitID uint, day, slot string) string {
	return fmt.Sprintf("%d|%d|%s|%s", userID, habitID, day, slot)
}

// User operations

func (m *MemoryStore) EnsureUser(phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, exists := m.users[phone]; exists {
		user.LastSeenAt = time.Now()
		return user, nil
	}

	m.userCounter++
	user := &models.User{
		Phone:      phone,
		Plan:       models.PlanFree,
		LastSeenAt: time.Now(),
	}
	user.ID = m.userCounter
	user.CreatedAt = time.Now()

	m.users[phone] = user
	return user, nil
}

func (m *MemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[phone]
	if !exists {
		return nil, ErrNotFound
	}
	return user, nil
}

func (m *MemoryStore) SetUserPlan(phone, plan string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[phone]
	if !exists {
		return ErrNotFound
	}
	user.Plan = plan
	return nil
}

func (m *MemoryStore) CountUsers() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *MemoryStore) CountActiveSince(since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, user := range m.users {
		if !user.LastSeenAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountCreatedSince(since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, user := range m.users {
		if !user.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Habit directory operations

func (m *MemoryStore) CreateHabit(userID uint, title string, slots []string) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.habitCounter++
	habit := &models.Habit{
		UserID:   userID,
		Title:    title,
		IsActive: true,
	}
	habit.ID = m.habitCounter
	habit.CreatedAt = time.Now()

	for _, t := range slots {
		habit.Slots = append(habit.Slots, models.HabitSlot{HabitID: habit.ID, Time: t})
	}

	m.habits[habit.ID] = habit
	return habit, nil
}

func (m *MemoryStore) GetHabit(userID, habitID uint) (*models.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	habit, exists := m.habits[habitID]
	if !exists || habit.UserID != userID || !habit.IsActive {
		return nil, ErrNotFound
	}
	return habit, nil
}

func (m *MemoryStore) ListActiveHabits(userID uint) ([]*models.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var habits []*models.Habit
	for _, habit := range m.habits {
		if habit.UserID == userID && habit.IsActive {
			habits = append(habits, habit)
		}
	}
	sort.Slice(habits, func(i, j int) bool { return habits[i].ID < habits[j].ID })
	return habits, nil
}

func (m *MemoryStore) ListDueHabits(slot string) ([]*DueHabit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*DueHabit
	for _, habit := range m.habits {
		if !habit.IsActive {
			continue
		}
		for _, s := range habit.Slots {
			if s.Time != slot {
				continue
			}
			phone := ""
			for _, user := range m.users {
				if user.ID == habit.UserID {
					phone = user.Phone
					break
				}
			}
			due = append(due, &DueHabit{
				UserID:  habit.UserID,
				Phone:   phone,
				HabitID: habit.ID,
				Title:   habit.Title,
			})
			break
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].UserID != due[j].UserID {
			return due[i].UserID < due[j].UserID
		}
		return due[i].HabitID < due[j].HabitID
	})
	return due, nil
}

func (m *MemoryStore) CountActiveHabits(userID uint) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, habit := range m.habits {
		if habit.UserID == userID && habit.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteHabit(userID, habitID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	habit, exists := m.habits[habitID]
	if !exists || habit.UserID != userID {
		return ErrNotFound
	}
	delete(m.habits, habitID)

	// Habit deletion takes its check-in history with it
	for id, c := range m.checkins {
		if c.HabitID == habitID {
			delete(m.checkinKeys, checkinKey(c.UserID, c.HabitID, c.Day, c.Slot))
			delete(m.checkins, id)
		}
	}
	return nil
}

func (m *MemoryStore) ReplaceHabitSlots(userID, habitID uint, slots []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	habit, exists := m.habits[habitID]
	if !exists || habit.UserID != userID || !habit.IsActive {
		return ErrNotFound
	}

	habit.Slots = habit.Slots[:0]
	for _, t := range slots {
		habit.Slots = append(habit.Slots, models.HabitSlot{HabitID: habitID, Time: t})
	}
	return nil
}

// Check-in ledger operations

func (m *MemoryStore) EnsureCheckin(userID, habitID uint, day, slot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := checkinKey(userID, habitID, day, slot)
	if _, exists := m.checkinKeys[key]; exists {
		return false, nil
	}

	m.checkinCounter++
	checkin := &models.Checkin{
		UserID:  userID,
		HabitID: habitID,
		Day:     day,
		Slot:    slot,
		Status:  models.CheckinStatusPending,
	}
	checkin.ID = m.checkinCounter
	checkin.CreatedAt = time.Now()

	m.checkins[checkin.ID] = checkin
	m.checkinKeys[key] = checkin.ID
	return true, nil
}

func (m *MemoryStore) FindCheckin(userID, habitID uint, day, slot string) (*models.Checkin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.checkinKeys[checkinKey(userID, habitID, day, slot)]
	if !exists {
		return nil, ErrNotFound
	}
	return m.checkins[id], nil
}

func (m *MemoryStore) MarkCheckinDone(checkinID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	checkin, exists := m.checkins[checkinID]
	if !exists {
		return ErrNotFound
	}
	checkin.Status = models.CheckinStatusDone
	checkin.Reason = ""
	return nil
}

func (m *MemoryStore) MarkCheckinMiss(checkinID uint, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	checkin, exists := m.checkins[checkinID]
	if !exists {
		return ErrNotFound
	}
	checkin.Status = models.CheckinStatusMiss
	checkin.Reason = reason
	return nil
}
