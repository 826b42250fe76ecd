package jobs

import "time"

// Clock supplies the current time to the check-in trigger. The trigger
// only ever needs the local day and the "HH:MM" slot; tests substitute
// a fixed clock to pin both.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }
