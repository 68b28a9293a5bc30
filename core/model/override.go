package model

import "time"

// OverrideWindow suspends per-price evaluation between Start and End,
// both inclusive. Start doubles as the window identifier.
type OverrideWindow struct {
	Start         time.Time `json:"start" db:"start_utc"`
	End           time.Time `json:"end" db:"end_utc"`
	IntervalCount int       `json:"interval_count" db:"interval_count"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Contains reports whether now lies inside the window.
func (w OverrideWindow) Contains(now time.Time) bool {
	return !now.Before(w.Start) && !now.After(w.End)
}
