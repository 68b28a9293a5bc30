package model

import (
	"fmt"
	"time"
)

// ActionFailure describes one action that could not be applied during a cycle.
type ActionFailure struct {
	TriggerName string    `json:"trigger_name"`
	ItemID      string    `json:"item_id"`
	ItemName    string    `json:"item_name"`
	GroupID     string    `json:"group_id"`
	Message     string    `json:"message"`
	Detail      string    `json:"detail"`
	Retries     int       `json:"retries"`
	Timestamp   time.Time `json:"timestamp"`
}

func (f ActionFailure) String() string {
	return fmt.Sprintf("%s/%s: %s (%s)", f.TriggerName, f.ItemName, f.Message, f.Detail)
}
