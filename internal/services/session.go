package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/habitloop/habitloop-backend/internal/storage"
)

// ErrSessionActive is returned when a session or awaiting-reason marker
// already exists for the user. A second start never mutates state.
var ErrSessionActive = errors.New("check-in session already active")

// CheckinEntry is one habit queued for a check-in session
type CheckinEntry struct {
	HabitID uint
	Title   string
}

// CheckinSession is the ephemeral per-user walk through the habits due
// at one trigger firing. It lives only in memory; a restart drops it
// (the ledger rows stay pending and are not resumed).
type CheckinSession struct {
	Phone     string
	UserID    uint
	Day       string // "2006-01-02"
	Slot      string // "HH:MM" or "manual"
	Queue     []CheckinEntry
	Cursor    int
	StartedAt time.Time
}

// SessionManager owns all per-user conversational check-in state: the
// active sessions and the awaiting-reason markers. All transitions for
// one user are serialized through a per-user lock; different users run
// fully independently.
type SessionManager struct {
	store  storage.Store
	sender MessageSender

	mu             sync.Mutex
	sessions       map[string]*CheckinSession
	awaitingReason map[string]uint // phone -> checkin ID waiting for a reason
	userLocks      map[string]*sync.Mutex
}

var sessionManagerInstance *SessionManager

// SetSessionManager sets the global session manager instance (call from main.go)
func SetSessionManager(sm *SessionManager) {
	sessionManagerInstance = sm
}

// GetSessionManager returns the global session manager instance
func GetSessionManager() *SessionManager {
	return sessionManagerInstance
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.Store, sender MessageSender) *SessionManager {
	return &SessionManager{
		store:          store,
		sender:         sender,
		sessions:       make(map[string]*CheckinSession),
		awaitingReason: make(map[string]uint),
		userLocks:      make(map[string]*sync.Mutex),
	}
}

// userLock returns the serialization lock for one user, creating it on
// first use. Lock lifetime is the process; the map only grows with the
// set of users seen, which is bounded by the user table.
func (sm *SessionManager) userLock(phone string) *sync.Mutex {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	l, exists := sm.userLocks[phone]
	if !exists {
		l = &sync.Mutex{}
		sm.userLocks[phone] = l
	}
	return l
}

// StartSession begins a check-in session for the user. It refuses to
// start while a session or an awaiting-reason marker exists. Ledger
// rows are ensured for every queued habit before the first prompt goes
// out, so habits the user never reaches are still marked pending and
// won't be re-asked in the same slot.
func (sm *SessionManager) StartSession(phone string, userID uint, day, slot string, queue []CheckinEntry) error {
	if len(queue) == 0 {
		return fmt.Errorf("empty check-in queue")
	}

	l := sm.userLock(phone)
	l.Lock()
	defer l.Unlock()

	if sm.hasActiveState(phone) {
		return ErrSessionActive
	}

	for _, entry := range queue {
		if _, err := sm.store.EnsureCheckin(userID, entry.HabitID, day, slot); err != nil {
			return fmt.Errorf("failed to register checkin for habit %d: %w", entry.HabitID, err)
		}
	}

	session := &CheckinSession{
		Phone:     phone,
		UserID:    userID,
		Day:       day,
		Slot:      slot,
		Queue:     queue,
		StartedAt: time.Now(),
	}

	sm.mu.Lock()
	sm.sessions[phone] = session
	sm.mu.Unlock()

	log.Printf("Check-in session started for %s: %d habit(s), slot %s", phone, len(queue), slot)
	return sm.promptCurrent(session)
}

// HandleInbound offers a free-text message to the check-in state
// machine. It reports handled=false when the user has neither a session
// nor an awaiting-reason marker, so the caller can fall through to
// command routing.
func (sm *SessionManager) HandleInbound(phone, text string) (bool, error) {
	l := sm.userLock(phone)
	l.Lock()
	defer l.Unlock()

	sm.mu.Lock()
	checkinID, waiting := sm.awaitingReason[phone]
	session := sm.sessions[phone]
	sm.mu.Unlock()

	// A "no" without a reason pauses everything until the reason
	// arrives; whatever the user sends next is the reason.
	if waiting {
		reason := strings.TrimSpace(text)
		err := sm.store.MarkCheckinMiss(checkinID, reason)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return true, fmt.Errorf("failed to record miss reason: %w", err)
		}
		// ErrNotFound means the habit (and its checkin) was deleted
		// while we waited; drop the marker and move on.

		sm.mu.Lock()
		delete(sm.awaitingReason, phone)
		sm.mu.Unlock()

		if err := sm.sender.SendMessage(phone, MissAck()); err != nil {
			return true, err
		}
		if session != nil {
			return true, sm.advance(session)
		}
		return true, nil
	}

	if session == nil {
		return false, nil
	}

	entry := session.Queue[session.Cursor]
	reply := ClassifyReply(text)

	switch reply.Intent {
	case IntentAffirmative:
		checkin, err := sm.store.FindCheckin(session.UserID, entry.HabitID, session.Day, session.Slot)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Habit (and its checkins) deleted mid-session: skip
				log.Printf("Checkin row missing for habit %d, skipping entry", entry.HabitID)
				return true, sm.advance(session)
			}
			return true, err
		}
		if err := sm.store.MarkCheckinDone(checkin.ID); err != nil {
			return true, fmt.Errorf("failed to record completion: %w", err)
		}
		if err := sm.sender.SendMessage(phone, DoneReply()); err != nil {
			return true, err
		}
		return true, sm.advance(session)

	case IntentNegative:
		checkin, err := sm.store.FindCheckin(session.UserID, entry.HabitID, session.Day, session.Slot)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				log.Printf("Checkin row missing for habit %d, skipping entry", entry.HabitID)
				return true, sm.advance(session)
			}
			return true, err
		}
		if reply.HasReason {
			if err := sm.store.MarkCheckinMiss(checkin.ID, reply.Reason); err != nil {
				return true, fmt.Errorf("failed to record miss: %w", err)
			}
			if err := sm.sender.SendMessage(phone, MissAck()); err != nil {
				return true, err
			}
			return true, sm.advance(session)
		}

		// Pause the session until the reason arrives. No timeout.
		sm.mu.Lock()
		sm.awaitingReason[phone] = checkin.ID
		sm.mu.Unlock()
		return true, sm.sender.SendMessage(phone, AskReasonText)

	default:
		// Unrecognized input is not an error: reprompt, no state change
		return true, sm.sender.SendMessage(phone, RepromptText)
	}
}

// advance moves the cursor forward and prompts the next habit, or ends
// the session when the queue is exhausted. The cursor only ever grows.
func (sm *SessionManager) advance(session *CheckinSession) error {
	session.Cursor++
	if session.Cursor >= len(session.Queue) {
		sm.mu.Lock()
		delete(sm.sessions, session.Phone)
		sm.mu.Unlock()

		log.Printf("Check-in session completed for %s", session.Phone)
		return sm.sender.SendMessage(session.Phone, SessionDoneText)
	}
	return sm.promptCurrent(session)
}

// promptCurrent sends the question for the habit under the cursor. A
// habit that disappeared since the queue was built (deleted through the
// CRUD path) is skipped rather than crashing the session.
func (sm *SessionManager) promptCurrent(session *CheckinSession) error {
	entry := session.Queue[session.Cursor]

	if _, err := sm.store.GetHabit(session.UserID, entry.HabitID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("Habit %d gone mid-session for %s, skipping", entry.HabitID, session.Phone)
			return sm.advance(session)
		}
		return err
	}

	prompt := CheckinPrompt(entry.Title, session.Cursor+1, len(session.Queue))
	return sm.sender.SendMessage(session.Phone, prompt)
}

// hasActiveState reports whether the user has a session or an
// awaiting-reason marker. Callers hold the user lock.
func (sm *SessionManager) hasActiveState(phone string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[phone]; exists {
		return true
	}
	_, waiting := sm.awaitingReason[phone]
	return waiting
}

// HasActiveState reports whether the user is mid-session or mid-reason
// wait. The check-in trigger uses it to skip busy users for a tick.
func (sm *SessionManager) HasActiveState(phone string) bool {
	return sm.hasActiveState(phone)
}

// ActiveSessionCount returns the number of live sessions (for monitoring)
func (sm *SessionManager) ActiveSessionCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}
