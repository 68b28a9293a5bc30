package events

import "time"

// TriggerEvent records one trigger decision within a cycle.
type TriggerEvent struct {
	CycleID  string    `json:"cycle_id"`
	Trigger  string    `json:"trigger"`
	Type     string    `json:"type"`
	Result   string    `json:"result"`
	Reason   string    `json:"reason"`
	Failures int       `json:"failures"`
	Time     time.Time `json:"time"`
}
