package events

import "time"

// CycleEvent is published when a cycle ends, whatever its outcome. It
// carries every trigger decision taken in the cycle.
type CycleEvent struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Outcome  string        `json:"outcome"`
	Mode     string        `json:"mode,omitempty"`
	Fired    int           `json:"fired"`
	Failures int           `json:"failures"`
	Error    string        `json:"error,omitempty"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`

	Decisions []TriggerEvent `json:"decisions,omitempty"`
}
