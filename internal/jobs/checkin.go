package jobs

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/habitloop/habitloop-backend/internal/services"
	"github.com/habitloop/habitloop-backend/internal/storage"
)

// CheckinJob is the periodic trigger that matches habit reminder slots
// against the current minute and starts check-in sessions. Slots are
// specified to the minute, so one tick per minute is the required
// resolution.
type CheckinJob struct {
	store     storage.Store
	sessions  *services.SessionManager
	clock     Clock
	isRunning bool
	stop      chan struct{}
}

// NewCheckinJob creates the check-in trigger
func NewCheckinJob(store storage.Store, sessions *services.SessionManager) *CheckinJob {
	return &CheckinJob{
		store:    store,
		sessions: sessions,
		clock:    SystemClock(),
		stop:     make(chan struct{}),
	}
}

// SetClock replaces the time source (test seam)
func (j *CheckinJob) SetClock(c Clock) {
	j.clock = c
}

// Start begins the minute loop
func (j *CheckinJob) Start() {
	if j.isRunning {
		log.Println("Check-in trigger already running")
		return
	}

	j.isRunning = true
	log.Println("Starting check-in trigger...")
	go j.run()
}

// Stop halts the trigger
func (j *CheckinJob) Stop() {
	if !j.isRunning {
		return
	}
	j.isRunning = false
	close(j.stop)
	log.Println("Stopping check-in trigger...")
}

// run fires Tick once per minute, aligned to the minute boundary so the
// computed slot matches the wall clock minute it fires in.
func (j *CheckinJob) run() {
	now := j.clock.Now()
	firstFire := now.Truncate(time.Minute).Add(time.Minute)

	select {
	case <-time.After(firstFire.Sub(now)):
	case <-j.stop:
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	j.Tick()
	for {
		select {
		case <-ticker.C:
			j.Tick()
		case <-j.stop:
			return
		}
	}
}

// Tick runs one trigger pass: find habits due at the current minute,
// group them by user, and start a session per idle user. Users already
// mid-session or mid-reason-wait are skipped wholesale - interleaving
// two question streams would be worse than asking late. The tick never
// waits for any user's reply.
func (j *CheckinJob) Tick() {
	now := j.clock.Now()
	slot := now.Format("15:04")
	day := now.Format("2006-01-02")

	due, err := j.store.ListDueHabits(slot)
	if err != nil {
		log.Printf("Error listing due habits for slot %s: %v", slot, err)
		return
	}
	if len(due) == 0 {
		return
	}

	type userQueue struct {
		userID uint
		phone  string
		queue  []services.CheckinEntry
	}

	byPhone := make(map[string]*userQueue)
	var order []string
	for _, d := range due {
		uq, exists := byPhone[d.Phone]
		if !exists {
			uq = &userQueue{userID: d.UserID, phone: d.Phone}
			byPhone[d.Phone] = uq
			order = append(order, d.Phone)
		}
		uq.queue = append(uq.queue, services.CheckinEntry{HabitID: d.HabitID, Title: d.Title})
	}
	sort.Strings(order)

	started := 0
	for _, phone := range order {
		uq := byPhone[phone]

		// Habit id ascending within a user's queue
		sort.Slice(uq.queue, func(a, b int) bool {
			return uq.queue[a].HabitID < uq.queue[b].HabitID
		})

		err := j.sessions.StartSession(uq.phone, uq.userID, day, slot, uq.queue)
		if errors.Is(err, services.ErrSessionActive) {
			log.Printf("Skipping check-in for %s at %s: session already active", uq.phone, slot)
			continue
		}
		if err != nil {
			log.Printf("Failed to start check-in session for %s: %v", uq.phone, err)
			continue
		}
		started++
	}

	if started > 0 {
		log.Printf("Check-in trigger %s: %d session(s) started", slot, started)
	}
}
