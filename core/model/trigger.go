package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CycleClass identifies which evaluation cycle runs a trigger.
type CycleClass string

const (
	CycleHourly   CycleClass = "Hourly"
	CyclePerPrice CycleClass = "PerPrice"
)

// TriggerType is the closed set of rule types understood by the evaluator.
type TriggerType string

const (
	PriceAbove         TriggerType = "Price_Above"
	PriceBelow         TriggerType = "Price_Below"
	AverageAbove       TriggerType = "Average_Above"
	AverageBelow       TriggerType = "Average_Below"
	SectionLow         TriggerType = "Section_Low"
	SectionLowMultiDay TriggerType = "SectionLow_Multi_Day"

	HourlyNotifyPricesList       TriggerType = "Hourly_NotifyPricesList"
	HourlyNotifyPricesBelowValue TriggerType = "Hourly_NotifyPricesBelowValue"
	HourlyNotifyLowestSection    TriggerType = "Hourly_NotifyLowestSection"
	HourlySummary                TriggerType = "Hourly_Summary"
)

// IsHourly reports whether t is one of the report-only hourly types.
func (t TriggerType) IsHourly() bool {
	switch t {
	case HourlyNotifyPricesList, HourlyNotifyPricesBelowValue, HourlyNotifyLowestSection, HourlySummary:
		return true
	}
	return false
}

// Known reports whether t belongs to the supported set.
func (t TriggerType) Known() bool {
	switch t {
	case PriceAbove, PriceBelow, AverageAbove, AverageBelow, SectionLow, SectionLowMultiDay:
		return true
	}
	return t.IsHourly()
}

// ModeEntry enables or disables a trigger for a named operating mode.
type ModeEntry struct {
	Mode   string `json:"mode"`
	Active bool   `json:"active"`
}

// Trigger is a rule evaluated once per cycle.
type Trigger struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Cycle    CycleClass       `json:"interval"`
	Type     TriggerType      `json:"type"`
	Order    int              `json:"order"`
	Active   bool             `json:"active"`
	Value    *decimal.Decimal `json:"value,omitempty"`
	MinCheck *TimeOfDay       `json:"min_check,omitempty"`
	MaxCheck *TimeOfDay       `json:"max_check,omitempty"`
	Modes    []ModeEntry      `json:"modes"`
	Actions  []Action         `json:"actions"`
}

// HasMode reports whether the trigger is enabled for mode.
func (t Trigger) HasMode(mode string) bool {
	for _, m := range t.Modes {
		if m.Active && strings.EqualFold(m.Mode, mode) {
			return true
		}
	}
	return false
}

// Threshold returns the trigger value or zero when unset.
func (t Trigger) Threshold() decimal.Decimal {
	if t.Value == nil {
		return decimal.Zero
	}
	return *t.Value
}

// IntervalCount interprets the trigger value as a whole number of slots or
// days. Fractions are truncated.
func (t Trigger) IntervalCount() int {
	return int(t.Threshold().IntPart())
}

// HasInterval reports whether the trigger restricts evaluation to a daily
// time-of-day interval.
func (t Trigger) HasInterval() bool {
	return t.MinCheck != nil && t.MaxCheck != nil
}

// Action is a single device command attached to a trigger.
type Action struct {
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name"`
	GroupID     string `json:"group_id"`
	DeviceID    string `json:"device_id"`
	TargetState int    `json:"state_to"`
}

// ActionGroup holds the vendor session shared by the devices of one group.
type ActionGroup struct {
	ID           string    `json:"id" db:"id"`
	Token        string    `json:"token" db:"token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	AuthURL      string    `json:"auth_url" db:"auth_url"`
	DeviceURL    string    `json:"device_url" db:"device_url"`
	TerminalUUID string    `json:"terminal_uuid" db:"terminal_uuid"`
	LastUpdated  time.Time `json:"last_updated" db:"last_updated"`
}

// TimeOfDay is a wall-clock time without date, encoded as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// MarshalJSON encodes the time as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
