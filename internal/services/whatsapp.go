package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/habitloop/habitloop-backend/internal/models"
	"github.com/habitloop/habitloop-backend/internal/storage"
)

// Multi-step flow modes for habit creation
const (
	flowAwaitTitle = "await_title"
	flowAwaitSlots = "await_slots"
)

// flowState tracks a user mid-way through the ADD conversation
type flowState struct {
	Mode  string
	Title string
}

// WhatsAppService routes inbound WhatsApp messages. Every message is
// offered to the check-in session machine first; only when the user has
// no session and no pending reason does it fall through to commands.
type WhatsAppService struct {
	store    storage.Store
	sessions *SessionManager

	flowMu sync.Mutex
	flows  map[string]*flowState // phone -> pending ADD flow
}

// NewWhatsAppService creates a new WhatsApp message router
func NewWhatsAppService(store storage.Store, sessions *SessionManager) *WhatsAppService {
	return &WhatsAppService{
		store:    store,
		sessions: sessions,
		flows:    make(map[string]*flowState),
	}
}

// ProcessMessage handles one inbound message and returns the reply text
// (empty when the session machine already answered via the sender).
func (w *WhatsAppService) ProcessMessage(from, message string) (string, error) {
	phone := strings.TrimPrefix(from, "whatsapp:")

	user, err := w.store.EnsureUser(phone)
	if err != nil {
		return "", fmt.Errorf("failed to ensure user: %w", err)
	}

	log.Printf("Processing message from %s", phone)

	msg := strings.TrimSpace(strings.ToUpper(message))

	// A manual check-in request during an open check-in is rejected
	// outright, not queued - and must not be consumed as an answer
	if msg == "CHECK" && w.sessions.HasActiveState(phone) {
		return SessionActiveText, nil
	}

	// Check-in conversation takes priority over everything else
	handled, err := w.sessions.HandleInbound(phone, message)
	if err != nil {
		return "", err
	}
	if handled {
		return "", nil
	}

	// Pending ADD flow?
	w.flowMu.Lock()
	flow := w.flows[phone]
	w.flowMu.Unlock()
	if flow != nil {
		return w.continueAddFlow(user, flow, message)
	}

	switch {
	case msg == "HELP" || msg == "HI" || msg == "HELLO" || msg == "START":
		return HelpText, nil

	case msg == "ADD":
		return w.startAddFlow(user)

	case msg == "LIST":
		return w.handleList(user)

	case strings.HasPrefix(msg, "DELETE"):
		return w.handleDelete(user, msg)

	case strings.HasPrefix(msg, "RETIME"):
		return w.handleRetime(user, msg)

	case msg == "CHECK":
		return w.handleManualCheckin(user)

	case msg == "STATS":
		return w.handleAdminStats(user)

	case msg == "SETPRO" || msg == "SETFREE":
		return w.handleAdminPlan(user, msg)

	default:
		// Stay out of ordinary conversation; only nudge when it looks
		// like a lost check-in answer
		if ClassifyReply(message).Intent != IntentUnknown {
			return "There's no open check-in right now. Send CHECK to start one 🙂", nil
		}
		return "", nil
	}
}

// Habit creation (two-step conversational flow)

func (w *WhatsAppService) startAddFlow(user *models.User) (string, error) {
	count, err := w.store.CountActiveHabits(user.ID)
	if err != nil {
		return "", err
	}
	if count >= int64(user.HabitLimit()) {
		return fmt.Sprintf("Habit limit reached: %d. Pro allows more.", user.HabitLimit()), nil
	}

	w.flowMu.Lock()
	w.flows[user.Phone] = &flowState{Mode: flowAwaitTitle}
	w.flowMu.Unlock()

	return AskHabitTitleText, nil
}

func (w *WhatsAppService) continueAddFlow(user *models.User, flow *flowState, message string) (string, error) {
	switch flow.Mode {
	case flowAwaitTitle:
		title := strings.TrimSpace(message)
		if len(title) < 2 {
			return "That's too short. Describe the habit a bit more 🙂", nil
		}

		w.flowMu.Lock()
		w.flows[user.Phone] = &flowState{Mode: flowAwaitSlots, Title: title}
		w.flowMu.Unlock()

		return AskHabitSlotsText, nil

	case flowAwaitSlots:
		slots := models.ParseSlotsCSV(message)
		if slots == nil {
			return BadSlotFormatText, nil
		}
		if len(slots) > user.SlotLimit() {
			return fmt.Sprintf("Too many times at once: %d. Your plan's limit is %d.",
				len(slots), user.SlotLimit()), nil
		}

		habit, err := w.store.CreateHabit(user.ID, flow.Title, slots)
		if err != nil {
			return "", fmt.Errorf("failed to create habit: %w", err)
		}

		w.flowMu.Lock()
		delete(w.flows, user.Phone)
		w.flowMu.Unlock()

		return fmt.Sprintf("Done ✅ Habit created: #%d %s\n⏰ %s\n\nJust answer when I ask.",
			habit.ID, habit.Title, strings.Join(slots, ", ")), nil
	}

	// Unknown mode: drop the flow rather than trapping the user
	w.flowMu.Lock()
	delete(w.flows, user.Phone)
	w.flowMu.Unlock()
	return HelpText, nil
}

// Habit listing / deletion / retiming

func (w *WhatsAppService) handleList(user *models.User) (string, error) {
	habits, err := w.store.ListActiveHabits(user.ID)
	if err != nil {
		return "", err
	}
	if len(habits) == 0 {
		return "No habits yet. Send ADD and we'll make the first one.", nil
	}

	lines := []string{"Your habits:"}
	for _, h := range habits {
		times := strings.Join(h.SlotTimes(), ", ")
		if times == "" {
			times = "-"
		}
		lines = append(lines, fmt.Sprintf("\n#%d %s\n⏰ %s", h.ID, h.Title, times))
	}
	return strings.Join(lines, "\n"), nil
}

func (w *WhatsAppService) handleDelete(user *models.User, msg string) (string, error) {
	arg := strings.TrimSpace(strings.TrimPrefix(msg, "DELETE"))
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return "I need the habit number. Example: DELETE 12", nil
	}

	err = w.store.DeleteHabit(user.ID, uint(id))
	if errors.Is(err, storage.ErrNotFound) {
		return "Couldn't find that habit of yours. Check LIST.", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete habit: %w", err)
	}
	return "Deleted ✅", nil
}

func (w *WhatsAppService) handleRetime(user *models.User, msg string) (string, error) {
	args := strings.Fields(strings.TrimPrefix(msg, "RETIME"))
	if len(args) != 2 {
		return "Format: RETIME 12 09:00,12:00,18:00", nil
	}

	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return "The habit number comes first. Example: RETIME 12 09:00,18:00", nil
	}

	slots := models.ParseSlotsCSV(args[1])
	if slots == nil {
		return BadSlotFormatText, nil
	}
	if len(slots) > user.SlotLimit() {
		return fmt.Sprintf("Too many times: %d. Your plan's limit is %d.",
			len(slots), user.SlotLimit()), nil
	}

	err = w.store.ReplaceHabitSlots(user.ID, uint(id), slots)
	if errors.Is(err, storage.ErrNotFound) {
		return "Couldn't find that habit. Check LIST.", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to replace slots: %w", err)
	}
	return "Times updated ⏰", nil
}

// Manual check-in

func (w *WhatsAppService) handleManualCheckin(user *models.User) (string, error) {
	habits, err := w.store.ListActiveHabits(user.ID)
	if err != nil {
		return "", err
	}
	if len(habits) == 0 {
		return "No habits to check on. Send ADD first.", nil
	}

	queue := make([]CheckinEntry, 0, len(habits))
	for _, h := range habits {
		queue = append(queue, CheckinEntry{HabitID: h.ID, Title: h.Title})
	}

	day := time.Now().Format("2006-01-02")
	err = w.sessions.StartSession(user.Phone, user.ID, day, models.SlotManual, queue)
	if errors.Is(err, ErrSessionActive) {
		return SessionActiveText, nil
	}
	if err != nil {
		return "", err
	}
	return "", nil
}

// Admin commands (restricted to ADMIN_PHONE)

func (w *WhatsAppService) isAdmin(user *models.User) bool {
	admin := os.Getenv("ADMIN_PHONE")
	return admin != "" && user.Phone == admin
}

func (w *WhatsAppService) handleAdminStats(user *models.User) (string, error) {
	if !w.isAdmin(user) {
		return "", nil
	}

	total, err := w.store.CountUsers()
	if err != nil {
		return "", err
	}

	midnight := time.Now().Truncate(24 * time.Hour)
	activeToday, err := w.store.CountActiveSince(midnight)
	if err != nil {
		return "", err
	}
	newToday, err := w.store.CountCreatedSince(midnight)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("📊 Stats\n👤 Total users: %d\n🟢 Active today: %d\n🆕 New today: %d",
		total, activeToday, newToday), nil
}

func (w *WhatsAppService) handleAdminPlan(user *models.User, msg string) (string, error) {
	if !w.isAdmin(user) {
		return "", nil
	}

	plan := models.PlanFree
	if msg == "SETPRO" {
		plan = models.PlanPro
	}
	if err := w.store.SetUserPlan(user.Phone, plan); err != nil {
		return "", err
	}
	return fmt.Sprintf("Done. Plan: %s.", strings.ToUpper(plan)), nil
}
