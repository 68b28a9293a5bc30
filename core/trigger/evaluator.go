// Package trigger decides, for one cycle, which trigger definitions fire.
//
// Per-price cycles compare the current slot price against thresholds,
// period averages and cheapest sections, dispatching device actions on
// fire. Hourly cycles only render report fragments and persist the
// day's lowest section for later multi-day checks.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/metrics"
	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/report"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/core/store"
)

// ErrRepository wraps storage failures that abort the current cycle.
var ErrRepository = errors.New("repository failure")

// MultiDayFireWindow is how long a SectionLow_Multi_Day trigger keeps
// firing after the recorded cheapest start.
const MultiDayFireWindow = 4 * slot.Duration

// Dispatcher applies the actions of a fired trigger.
type Dispatcher interface {
	Dispatch(ctx context.Context, t model.Trigger) []model.ActionFailure
}

// PriceBand colours the rows of the hourly price list.
type PriceBand struct {
	From   decimal.Decimal `json:"from"`
	To     decimal.Decimal `json:"to"`
	Colour string          `json:"colour"`
}

// Evaluator holds the collaborators shared by every cycle.
type Evaluator struct {
	prices     store.PriceRepository
	lowest     store.LowestSectionStore
	dispatcher Dispatcher
	cal        slot.Calendar
	bands      []PriceBand
	log        logger.Logger
	metrics    metrics.MetricsSink
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(prices store.PriceRepository, lowest store.LowestSectionStore, d Dispatcher, cal slot.Calendar, log logger.Logger) *Evaluator {
	return &Evaluator{
		prices:     prices,
		lowest:     lowest,
		dispatcher: d,
		cal:        cal,
		log:        log,
		metrics:    metrics.NopSink{},
	}
}

// WithMetrics records trigger decisions on sink.
func (e *Evaluator) WithMetrics(sink metrics.MetricsSink) *Evaluator {
	if sink != nil {
		e.metrics = sink
	}
	return e
}

// WithBands sets the colour bands used by the price list report.
func (e *Evaluator) WithBands(bands []PriceBand) *Evaluator {
	e.bands = bands
	return e
}

// Decision is the outcome of evaluating one trigger.
type Decision struct {
	Trigger  string
	Type     model.TriggerType
	Fired    bool
	Reason   string
	Failures int
}

// Result returns "fire" or "skip".
func (d Decision) Result() string {
	if d.Fired {
		return "fire"
	}
	return "skip"
}

type span struct{ from, to time.Time }

// Cycle is the state of one evaluation pass. It memoizes the price spans it
// reads and is discarded when the pass ends.
type Cycle struct {
	e         *Evaluator
	id        string
	now       time.Time
	slot      time.Time
	agg       *report.Aggregator
	spans     map[span][]model.PricePoint
	decisions []Decision
}

// NewCycle starts a cycle evaluated at now. Failures are collected in agg.
func (e *Evaluator) NewCycle(id string, now time.Time, agg *report.Aggregator) *Cycle {
	if agg == nil {
		agg = &report.Aggregator{}
	}
	return &Cycle{
		e:     e,
		id:    id,
		now:   now.UTC(),
		slot:  slot.Resolve(now),
		agg:   agg,
		spans: make(map[span][]model.PricePoint),
	}
}

// Slot returns the resolved current slot.
func (c *Cycle) Slot() time.Time { return c.slot }

// Decisions returns the decisions taken so far in evaluation order.
func (c *Cycle) Decisions() []Decision {
	out := make([]Decision, len(c.decisions))
	copy(out, c.decisions)
	return out
}

// Fired counts the triggers that fired.
func (c *Cycle) Fired() int {
	n := 0
	for _, d := range c.decisions {
		if d.Fired {
			n++
		}
	}
	return n
}

func (c *Cycle) decide(t model.Trigger, fired bool, reason string, failures int) {
	d := Decision{Trigger: t.Name, Type: t.Type, Fired: fired, Reason: reason, Failures: failures}
	c.decisions = append(c.decisions, d)
	c.e.log.Infof("trigger %s (%s): %s, %s", t.Name, t.Type, d.Result(), reason)
	if rec, ok := c.e.metrics.(metrics.TriggerDecisionRecorder); ok {
		if err := rec.RecordTriggerDecision(metrics.TriggerDecision{
			CycleID: c.id,
			Trigger: t.Name,
			Type:    string(t.Type),
			Result:  d.Result(),
			Reason:  reason,
			Time:    c.now,
		}); err != nil {
			c.e.log.Warnf("record trigger decision: %v", err)
		}
	}
}

func (c *Cycle) pricesIn(ctx context.Context, from, to time.Time) ([]model.PricePoint, error) {
	k := span{from, to}
	if p, ok := c.spans[k]; ok {
		return p, nil
	}
	p, err := c.e.prices.GetPricesInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: prices %s - %s: %v", ErrRepository, from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	c.spans[k] = p
	return p, nil
}

// periodPrices returns the local day's prices, or the trigger interval's
// prices when the trigger restricts evaluation to a time-of-day interval.
func (c *Cycle) periodPrices(ctx context.Context, t model.Trigger) ([]model.PricePoint, error) {
	if t.HasInterval() {
		from, to := c.e.cal.Interval(c.now, *t.MinCheck, *t.MaxCheck)
		return c.pricesIn(ctx, from, to)
	}
	from, to := c.e.cal.Day(c.now)
	return c.pricesIn(ctx, from, to)
}

func (c *Cycle) currentPrice(ctx context.Context) (*model.PricePoint, error) {
	p, err := c.e.prices.GetPriceAt(ctx, c.slot)
	if err != nil {
		return nil, fmt.Errorf("%w: price at %s: %v", ErrRepository, c.slot.Format(time.RFC3339), err)
	}
	return p, nil
}
