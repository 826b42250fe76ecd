package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitloop/habitloop-backend/internal/models"
)

func TestEnsureCheckin_Idempotent(t *testing.T) {
	store := NewMemoryStore()

	created, err := store.EnsureCheckin(1, 2, "2026-08-26", "09:00")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.EnsureCheckin(1, 2, "2026-08-26", "09:00")
	require.NoError(t, err)
	assert.False(t, created, "second ensure for the same key must be a no-op")

	// Exactly one row, still pending
	checkin, err := store.FindCheckin(1, 2, "2026-08-26", "09:00")
	require.NoError(t, err)
	assert.Equal(t, models.CheckinStatusPending, checkin.Status)
}

func TestEnsureCheckin_DistinctKeys(t *testing.T) {
	store := NewMemoryStore()

	for _, key := range []struct {
		user, habit uint
		day, slot   string
	}{
		{1, 2, "2026-08-26", "09:00"},
		{1, 2, "2026-08-26", "18:00"}, // different slot
		{1, 2, "2026-08-27", "09:00"}, // different day
		{1, 3, "2026-08-26", "09:00"}, // different habit
		{2, 2, "2026-08-26", "09:00"}, // different user
	} {
		created, err := store.EnsureCheckin(key.user, key.habit, key.day, key.slot)
		require.NoError(t, err)
		assert.True(t, created, "key %+v", key)
	}
}

func TestMarkCheckinDone_ClearsReason(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.EnsureCheckin(1, 2, "2026-08-26", "09:00")
	require.NoError(t, err)
	checkin, err := store.FindCheckin(1, 2, "2026-08-26", "09:00")
	require.NoError(t, err)

	require.NoError(t, store.MarkCheckinMiss(checkin.ID, "tired"))
	require.NoError(t, store.MarkCheckinDone(checkin.ID))

	checkin, err = store.FindCheckin(1, 2, "2026-08-26", "09:00")
	require.NoError(t, err)
	assert.Equal(t, models.CheckinStatusDone, checkin.Status)
	assert.Empty(t, checkin.Reason)

	// Done twice is fine
	require.NoError(t, store.MarkCheckinDone(checkin.ID))
}

func TestMarkCheckin_UnknownID(t *testing.T) {
	store := NewMemoryStore()
	assert.ErrorIs(t, store.MarkCheckinDone(99), ErrNotFound)
	assert.ErrorIs(t, store.MarkCheckinMiss(99, "x"), ErrNotFound)
}

func TestEnsureUser_TouchesLastSeen(t *testing.T) {
	store := NewMemoryStore()

	first, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, first.Plan)

	again, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	n, err := store.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListDueHabits_MatchesSlotAndActivity(t *testing.T) {
	store := NewMemoryStore()

	user, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)

	water, err := store.CreateHabit(user.ID, "Water", []string{"09:00", "18:00"})
	require.NoError(t, err)
	_, err = store.CreateHabit(user.ID, "Reading", []string{"21:00"})
	require.NoError(t, err)

	due, err := store.ListDueHabits("09:00")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, water.ID, due[0].HabitID)
	assert.Equal(t, user.Phone, due[0].Phone)

	// A deleted habit stops matching
	require.NoError(t, store.DeleteHabit(user.ID, water.ID))
	due, err = store.ListDueHabits("09:00")
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestListDueHabits_OrderedByUserThenHabit(t *testing.T) {
	store := NewMemoryStore()

	alice, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)
	bob, err := store.EnsureUser("+15550002222")
	require.NoError(t, err)

	bh, err := store.CreateHabit(bob.ID, "Reading", []string{"09:00"})
	require.NoError(t, err)
	ah2, err := store.CreateHabit(alice.ID, "Situps", []string{"09:00"})
	require.NoError(t, err)
	ah1, err := store.CreateHabit(alice.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	due, err := store.ListDueHabits("09:00")
	require.NoError(t, err)
	require.Len(t, due, 3)

	assert.Equal(t, alice.ID, due[0].UserID)
	assert.Equal(t, ah2.ID, due[0].HabitID)
	assert.Equal(t, ah1.ID, due[1].HabitID)
	assert.Equal(t, bob.ID, due[2].UserID)
	assert.Equal(t, bh.ID, due[2].HabitID)
}

func TestDeleteHabit_RemovesCheckins(t *testing.T) {
	store := NewMemoryStore()

	user, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)
	habit, err := store.CreateHabit(user.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	_, err = store.EnsureCheckin(user.ID, habit.ID, "2026-08-26", "09:00")
	require.NoError(t, err)

	require.NoError(t, store.DeleteHabit(user.ID, habit.ID))

	_, err = store.FindCheckin(user.ID, habit.ID, "2026-08-26", "09:00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteHabit_WrongOwner(t *testing.T) {
	store := NewMemoryStore()

	user, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)
	habit, err := store.CreateHabit(user.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	assert.ErrorIs(t, store.DeleteHabit(user.ID+1, habit.ID), ErrNotFound)

	// Still there for the real owner
	_, err = store.GetHabit(user.ID, habit.ID)
	assert.NoError(t, err)
}

func TestReplaceHabitSlots(t *testing.T) {
	store := NewMemoryStore()

	user, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)
	habit, err := store.CreateHabit(user.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	require.NoError(t, store.ReplaceHabitSlots(user.ID, habit.ID, []string{"07:30", "20:00"}))

	got, err := store.GetHabit(user.ID, habit.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"07:30", "20:00"}, got.SlotTimes())

	assert.ErrorIs(t, store.ReplaceHabitSlots(user.ID, 999, []string{"07:30"}), ErrNotFound)
}

func TestUserCounts(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.EnsureUser("+15550001111")
	require.NoError(t, err)
	_, err = store.EnsureUser("+15550002222")
	require.NoError(t, err)

	total, err := store.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	active, err := store.CountActiveSince(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)

	created, err := store.CountCreatedSince(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), created)
}
