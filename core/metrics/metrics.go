package metrics

import "time"

// CycleKind names the scheduled evaluation passes.
type CycleKind string

const (
	CyclePerPrice CycleKind = "per_price"
	CycleHourly   CycleKind = "hourly"
	CycleRefresh  CycleKind = "refresh"
)

// Cycle outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeGated     = "gated"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// CycleEvent summarises one finished cycle.
type CycleEvent struct {
	ID       string
	Kind     CycleKind
	Outcome  string
	Fired    int
	Failures int
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records cycle results for observability purposes.
type MetricsSink interface {
	RecordCycle(ev CycleEvent) error
}

// TriggerDecision captures the fire or skip result of one trigger.
type TriggerDecision struct {
	CycleID string
	Trigger string
	Type    string
	Result  string
	Reason  string
	Time    time.Time
}

// TriggerDecisionRecorder records trigger decisions.
type TriggerDecisionRecorder interface {
	RecordTriggerDecision(ev TriggerDecision) error
}

// ActionAttempt is one call to a device gateway.
type ActionAttempt struct {
	GroupID    string
	DeviceID   string
	State      int
	Attempt    int
	StatusCode int
	Success    bool
	Latency    time.Duration
	Time       time.Time
}

// ActionAttemptRecorder records device calls.
type ActionAttemptRecorder interface {
	RecordActionAttempt(ev ActionAttempt) error
}

// ActionFailureEvent is emitted once per failed action after retries.
type ActionFailureEvent struct {
	GroupID string
	Trigger string
	Item    string
	Reason  string
	Retries int
	Time    time.Time
}

// ActionFailureRecorder records failed actions.
type ActionFailureRecorder interface {
	RecordActionFailure(ev ActionFailureEvent) error
}

// PriceUpdate describes a day of prices fetched by the hourly cycle.
type PriceUpdate struct {
	Slots int
	Min   float64
	Max   float64
	Mean  float64
	Time  time.Time
}

// PriceUpdateRecorder records price fetches.
type PriceUpdateRecorder interface {
	RecordPriceUpdate(ev PriceUpdate) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error                 { return nil }
func (NopSink) RecordTriggerDecision(TriggerDecision) error  { return nil }
func (NopSink) RecordActionAttempt(ActionAttempt) error      { return nil }
func (NopSink) RecordActionFailure(ActionFailureEvent) error { return nil }
func (NopSink) RecordPriceUpdate(PriceUpdate) error          { return nil }
