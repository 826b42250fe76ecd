package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitloop/habitloop-backend/internal/models"
	"github.com/habitloop/habitloop-backend/internal/storage"
)

func newRouterFixture(t *testing.T) (*WhatsAppService, *storage.MemoryStore, *recordingSender) {
	t.Helper()

	store := storage.NewMemoryStore()
	sender := &recordingSender{}
	sessions := NewSessionManager(store, sender)
	return NewWhatsAppService(store, sessions), store, sender
}

const testPhone = "+15550001111"

func TestProcessMessage_Help(t *testing.T) {
	w, _, _ := newRouterFixture(t)

	for _, cmd := range []string{"help", "HI", "Hello", "start"} {
		reply, err := w.ProcessMessage(testPhone, cmd)
		require.NoError(t, err)
		assert.Equal(t, HelpText, reply, "command %q", cmd)
	}
}

func TestProcessMessage_StripsWhatsAppPrefix(t *testing.T) {
	w, store, _ := newRouterFixture(t)

	_, err := w.ProcessMessage("whatsapp:"+testPhone, "help")
	require.NoError(t, err)

	_, err = store.GetUserByPhone(testPhone)
	assert.NoError(t, err)
}

func TestProcessMessage_AddFlow(t *testing.T) {
	w, store, _ := newRouterFixture(t)

	reply, err := w.ProcessMessage(testPhone, "ADD")
	require.NoError(t, err)
	assert.Equal(t, AskHabitTitleText, reply)

	reply, err = w.ProcessMessage(testPhone, "Water - 2 glasses")
	require.NoError(t, err)
	assert.Equal(t, AskHabitSlotsText, reply)

	reply, err = w.ProcessMessage(testPhone, "09:00, 18:30")
	require.NoError(t, err)
	assert.Contains(t, reply, "Habit created")
	assert.Contains(t, reply, "Water - 2 glasses")

	user, err := store.GetUserByPhone(testPhone)
	require.NoError(t, err)
	habits, err := store.ListActiveHabits(user.ID)
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, []string{"09:00", "18:30"}, habits[0].SlotTimes())
}

func TestProcessMessage_AddFlowRejectsBadInput(t *testing.T) {
	w, _, _ := newRouterFixture(t)

	_, err := w.ProcessMessage(testPhone, "ADD")
	require.NoError(t, err)

	// Too-short title keeps the flow waiting
	reply, err := w.ProcessMessage(testPhone, "x")
	require.NoError(t, err)
	assert.Contains(t, reply, "too short")

	_, err = w.ProcessMessage(testPhone, "Morning run")
	require.NoError(t, err)

	// Bad time format keeps the flow waiting
	reply, err = w.ProcessMessage(testPhone, "9am")
	require.NoError(t, err)
	assert.Equal(t, BadSlotFormatText, reply)

	reply, err = w.ProcessMessage(testPhone, "07:00")
	require.NoError(t, err)
	assert.Contains(t, reply, "Habit created")
}

func TestProcessMessage_HabitLimit(t *testing.T) {
	w, store, _ := newRouterFixture(t)

	user, err := store.EnsureUser(testPhone)
	require.NoError(t, err)
	for i := 0; i < models.FreeHabitLimit; i++ {
		_, err := store.CreateHabit(user.ID, fmt.Sprintf("Habit %d", i), []string{"09:00"})
		require.NoError(t, err)
	}

	reply, err := w.ProcessMessage(testPhone, "ADD")
	require.NoError(t, err)
	assert.Contains(t, reply, "limit")
}

func TestProcessMessage_ListAndDelete(t *testing.T) {
	w, store, _ := newRouterFixture(t)

	reply, err := w.ProcessMessage(testPhone, "LIST")
	require.NoError(t, err)
	assert.Contains(t, reply, "No habits yet")

	user, err := store.GetUserByPhone(testPhone)
	require.NoError(t, err)
	habit, err := store.CreateHabit(user.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	reply, err = w.ProcessMessage(testPhone, "LIST")
	require.NoError(t, err)
	assert.Contains(t, reply, "Water")
	assert.Contains(t, reply, "09:00")

	reply, err = w.ProcessMessage(testPhone, fmt.Sprintf("DELETE %d", habit.ID))
	require.NoError(t, err)
	assert.Contains(t, reply, "Deleted")

	reply, err = w.ProcessMessage(testPhone, "DELETE 999")
	require.NoError(t, err)
	assert.Contains(t, reply, "Couldn't find")
}

func TestProcessMessage_Retime(t *testing.T) {
	w, store, _ := newRouterFixture(t)

	user, err := store.EnsureUser(testPhone)
	require.NoError(t, err)
	habit, err := store.CreateHabit(user.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	reply, err := w.ProcessMessage(testPhone, fmt.Sprintf("RETIME %d 07:00,21:30", habit.ID))
	require.NoError(t, err)
	assert.Contains(t, reply, "updated")

	got, err := store.GetHabit(user.ID, habit.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"07:00", "21:30"}, got.SlotTimes())

	reply, err = w.ProcessMessage(testPhone, "RETIME 12")
	require.NoError(t, err)
	assert.Contains(t, reply, "Format")
}

func TestProcessMessage_ManualCheckin(t *testing.T) {
	w, store, sender := newRouterFixture(t)

	user, err := store.EnsureUser(testPhone)
	require.NoError(t, err)
	habit, err := store.CreateHabit(user.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	reply, err := w.ProcessMessage(testPhone, "CHECK")
	require.NoError(t, err)
	assert.Empty(t, reply, "session prompts go through the sender")
	assert.Contains(t, sender.last(), "Water")

	// Ledger row under the manual sentinel slot
	day := time.Now().Format("2006-01-02")
	checkin, err := store.FindCheckin(user.ID, habit.ID, day, models.SlotManual)
	require.NoError(t, err)
	assert.Equal(t, models.CheckinStatusPending, checkin.Status)

	// A second CHECK while the session is open is rejected outright
	reply, err = w.ProcessMessage(testPhone, "CHECK")
	require.NoError(t, err)
	assert.Equal(t, SessionActiveText, reply)
}

func TestProcessMessage_SessionTakesPriority(t *testing.T) {
	w, store, sender := newRouterFixture(t)

	user, err := store.EnsureUser(testPhone)
	require.NoError(t, err)
	_, err = store.CreateHabit(user.ID, "Water", []string{"09:00"})
	require.NoError(t, err)

	_, err = w.ProcessMessage(testPhone, "CHECK")
	require.NoError(t, err)

	// "LIST" mid-session is a check-in answer attempt, not a command
	reply, err := w.ProcessMessage(testPhone, "LIST")
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Equal(t, RepromptText, sender.last())
}

func TestProcessMessage_AdminCommandsRestricted(t *testing.T) {
	w, _, _ := newRouterFixture(t)

	// Not the admin: commands are silently ignored
	reply, err := w.ProcessMessage(testPhone, "STATS")
	require.NoError(t, err)
	assert.Empty(t, reply)

	t.Setenv("ADMIN_PHONE", testPhone)

	reply, err = w.ProcessMessage(testPhone, "STATS")
	require.NoError(t, err)
	assert.Contains(t, reply, "Total users")

	reply, err = w.ProcessMessage(testPhone, "SETPRO")
	require.NoError(t, err)
	assert.Contains(t, reply, "PRO")
}

func TestProcessMessage_StrayAnswerGetsNudge(t *testing.T) {
	w, _, _ := newRouterFixture(t)

	reply, err := w.ProcessMessage(testPhone, "yes")
	require.NoError(t, err)
	assert.Contains(t, reply, "no open check-in")

	// Ordinary chatter is left alone
	reply, err = w.ProcessMessage(testPhone, "how are you")
	require.NoError(t, err)
	assert.Empty(t, reply)
}
