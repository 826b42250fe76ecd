package models

import (
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Habit is a recurring habit a user wants to be reminded about
type Habit struct {
	gorm.Model

	UserID   uint        `json:"user_id" gorm:"index"`
	Title    string      `json:"title"`
	IsActive bool        `json:"is_active" gorm:"default:true"`
	Slots    []HabitSlot `json:"slots" gorm:"foreignKey:HabitID"`
}

// HabitSlot is a single reminder time-of-day for a habit
type HabitSlot struct {
	gorm.Model

	HabitID uint   `json:"habit_id" gorm:"index"`
	Time    string `json:"time"` // "HH:MM", 24-hour
}

// SlotTimes returns the habit's reminder times as plain strings
func (h *Habit) SlotTimes() []string {
	times := make([]string, 0, len(h.Slots))
	for _, s := range h.Slots {
		times = append(times, s.Time)
	}
	return times
}

var slotRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

// IsValidSlot reports whether t is a well-formed "HH:MM" time
func IsValidSlot(t string) bool {
	t = strings.TrimSpace(t)
	if !slotRe.MatchString(t) {
		return false
	}
	h := int(t[0]-'0')*10 + int(t[1]-'0')
	m := int(t[3]-'0')*10 + int(t[4]-'0')
	return h <= 23 && m <= 59
}

// ParseSlotsCSV parses a comma-separated list of "HH:MM" times.
// Returns nil if the list is empty or any entry is malformed.
// The result is deduplicated and sorted.
func ParseSlotsCSV(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !IsValidSlot(p) {
			return nil
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	uniq := parts[:0]
	for _, p := range parts {
		if !seen[p] {
			seen[p] = true
			uniq = append(uniq, p)
		}
	}
	sort.Strings(uniq)
	return uniq
}
