// Package cycle runs the scheduled passes: per-price evaluation, the hourly
// price update and the device session refresh. Each pass owns its failure
// aggregator and price memo, reports once at the end and never panics the
// process on collaborator errors.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/events"
	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/metrics"
	"github.com/kilianp07/energyiot/core/mode"
	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/monitoring"
	"github.com/kilianp07/energyiot/core/override"
	"github.com/kilianp07/energyiot/core/report"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/core/store"
	"github.com/kilianp07/energyiot/core/trigger"
	"github.com/kilianp07/energyiot/internal/eventbus"
)

// PriceSource fetches published prices for [from, to).
type PriceSource interface {
	FetchPrices(ctx context.Context, from, to time.Time) ([]model.PricePoint, error)
}

// Summary describes a finished cycle.
type Summary struct {
	ID        string
	Kind      metrics.CycleKind
	Outcome   string
	Mode      string
	Decisions []trigger.Decision
	Failures  []model.ActionFailure
	Err       error
}

// Runner wires the engine collaborators together.
type Runner struct {
	store      store.Store
	gate       *override.Gate
	evaluator  *trigger.Evaluator
	refreshers map[string]action.Refresher
	source     PriceSource
	notifier   report.Notifier
	cal        slot.Calendar
	log        logger.Logger
	metrics    metrics.MetricsSink
	cycles     *eventbus.TypedBus[events.CycleEvent]
	decisions  *eventbus.TypedBus[events.TriggerEvent]
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithPriceSource enables price fetching in the hourly cycle.
func WithPriceSource(src PriceSource) Option { return func(r *Runner) { r.source = src } }

// WithNotifier sets the report sink.
func WithNotifier(n report.Notifier) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.MetricsSink) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithEventBuses publishes cycle and trigger events on the given buses.
func WithEventBuses(c *eventbus.TypedBus[events.CycleEvent], t *eventbus.TypedBus[events.TriggerEvent]) Option {
	return func(r *Runner) {
		r.cycles = c
		r.decisions = t
	}
}

// WithRefreshers registers gateways whose session token must be renewed,
// keyed by group id.
func WithRefreshers(refreshers map[string]action.Refresher) Option {
	return func(r *Runner) { r.refreshers = refreshers }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// NewRunner creates a Runner over st using evaluator for trigger decisions.
func NewRunner(st store.Store, evaluator *trigger.Evaluator, cal slot.Calendar, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:     st,
		gate:      override.NewGate(st, log),
		evaluator: evaluator,
		notifier:  report.NopNotifier{},
		cal:       cal,
		log:       log,
		metrics:   metrics.NopSink{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type run struct {
	r     *Runner
	sum   Summary
	start time.Time
	agg   report.Aggregator
	cycle *trigger.Cycle
}

func (r *Runner) begin(kind metrics.CycleKind) *run {
	return &run{r: r, sum: Summary{ID: uuid.NewString(), Kind: kind}, start: r.now()}
}

// finish sends the failure report, emits events and metrics and returns the
// summary.
func (x *run) finish(ctx context.Context, outcome string) Summary {
	r := x.r
	x.sum.Outcome = outcome
	x.sum.Failures = x.agg.Failures()
	if x.cycle != nil {
		x.sum.Decisions = x.cycle.Decisions()
	}
	if subject, body, ok := x.agg.Report(r.cal.Zone()); ok {
		report.Deliver(ctx, r.notifier, r.log, subject, body)
	}
	if x.sum.Err != nil {
		monitoring.CaptureException(x.sum.Err, monitoring.CycleTags(string(x.sum.Kind), x.sum.ID))
	}

	dur := r.now().Sub(x.start)
	fired := 0
	decided := make([]events.TriggerEvent, 0, len(x.sum.Decisions))
	for _, d := range x.sum.Decisions {
		if d.Fired {
			fired++
		}
		decided = append(decided, events.TriggerEvent{
			CycleID:  x.sum.ID,
			Trigger:  d.Trigger,
			Type:     string(d.Type),
			Result:   d.Result(),
			Reason:   d.Reason,
			Failures: d.Failures,
			Time:     x.start,
		})
	}
	ev := events.CycleEvent{
		ID:        x.sum.ID,
		Kind:      string(x.sum.Kind),
		Outcome:   outcome,
		Mode:      x.sum.Mode,
		Fired:     fired,
		Failures:  len(x.sum.Failures),
		Start:     x.start,
		Duration:  dur,
		Decisions: decided,
	}
	if x.sum.Err != nil {
		ev.Error = x.sum.Err.Error()
	}
	// Live subscribers get each decision; the cycle event is the complete record.
	if r.decisions != nil {
		for _, d := range decided {
			r.decisions.Publish(d)
		}
	}
	if r.cycles != nil {
		r.cycles.Publish(ev)
	}
	if err := r.metrics.RecordCycle(metrics.CycleEvent{
		ID:       x.sum.ID,
		Kind:     x.sum.Kind,
		Outcome:  outcome,
		Fired:    fired,
		Failures: len(x.sum.Failures),
		Duration: dur,
		Time:     x.start,
	}); err != nil {
		r.log.Warnf("record cycle: %v", err)
	}
	r.log.Infof("%s cycle %s %s in %s: %d fired, %d failures", x.sum.Kind, x.sum.ID, outcome, dur, fired, len(x.sum.Failures))
	return x.sum
}

func (x *run) fail(ctx context.Context, err error) Summary {
	x.sum.Err = err
	x.agg.AddError(err)
	x.r.log.Errorf("%s cycle %s: %v", x.sum.Kind, x.sum.ID, err)
	return x.finish(ctx, metrics.OutcomeFailed)
}

// RunPerPrice executes one per-price cycle: override gate, mode lookup,
// trigger evaluation and failure report.
func (r *Runner) RunPerPrice(ctx context.Context) Summary {
	x := r.begin(metrics.CyclePerPrice)
	now := x.start

	w, err := r.gate.Active(ctx, now)
	if err != nil {
		return x.fail(ctx, fmt.Errorf("%w: %v", trigger.ErrRepository, err))
	}
	if w != nil {
		return x.finish(ctx, metrics.OutcomeGated)
	}

	m, err := mode.Current(ctx, r.store, r.log)
	if err != nil {
		r.log.Warnf("%v, using %s", err, mode.Default)
		m = mode.Default
	}
	x.sum.Mode = m

	triggers, err := r.store.GetActivePerPriceTriggers(ctx, m)
	if err != nil {
		return x.fail(ctx, fmt.Errorf("%w: triggers: %v", trigger.ErrRepository, err))
	}
	x.cycle = r.evaluator.NewCycle(x.sum.ID, now, &x.agg)
	if err := x.cycle.RunPerPrice(ctx, triggers, m); err != nil {
		return x.fail(ctx, err)
	}
	return x.finish(ctx, metrics.OutcomeCompleted)
}

// RunHourly fetches the next tariff period when it is not stored yet, then
// evaluates the hourly triggers and sends the price update report.
func (r *Runner) RunHourly(ctx context.Context) Summary {
	x := r.begin(metrics.CycleHourly)
	from, to := r.cal.TariffPeriod(x.start)
	expected := slot.SlotCount(from, to)

	var prices []model.PricePoint
	if r.source != nil {
		last, err := r.store.GetPriceAt(ctx, to.Add(-slot.Duration))
		if err != nil {
			return x.fail(ctx, fmt.Errorf("%w: price at %s: %v", trigger.ErrRepository, to.Add(-slot.Duration).Format(time.RFC3339), err))
		}
		if last != nil {
			r.log.Infof("prices until %s already fetched", to.Format(time.RFC3339))
			return x.finish(ctx, metrics.OutcomeSkipped)
		}
		prices, err = r.source.FetchPrices(ctx, from, to)
		if err != nil {
			return x.fail(ctx, fmt.Errorf("fetch prices: %w", err))
		}
		if len(prices) < expected {
			r.log.Infof("got %d prices, waiting for %d", len(prices), expected)
			return x.finish(ctx, metrics.OutcomeSkipped)
		}
		if err := r.store.SavePrices(ctx, prices); err != nil {
			return x.fail(ctx, fmt.Errorf("%w: save prices: %v", trigger.ErrRepository, err))
		}
	} else {
		var err error
		prices, err = r.store.GetPricesInRange(ctx, from, to)
		if err != nil {
			return x.fail(ctx, fmt.Errorf("%w: prices: %v", trigger.ErrRepository, err))
		}
		if len(prices) == 0 {
			r.log.Infof("no stored prices for %s - %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
			return x.finish(ctx, metrics.OutcomeSkipped)
		}
	}
	r.recordPrices(prices, x.start)

	triggers, err := r.store.GetActiveHourlyTriggers(ctx)
	if err != nil {
		return x.fail(ctx, fmt.Errorf("%w: triggers: %v", trigger.ErrRepository, err))
	}
	if len(triggers) == 0 {
		r.log.Infof("no hourly triggers")
		return x.finish(ctx, metrics.OutcomeCompleted)
	}
	x.cycle = r.evaluator.NewCycle(x.sum.ID, x.start, &x.agg)
	upd := x.cycle.RunHourly(ctx, triggers, prices)
	report.Deliver(ctx, r.notifier, r.log, upd.Subject(), upd.Body())
	return x.finish(ctx, metrics.OutcomeCompleted)
}

func (r *Runner) recordPrices(prices []model.PricePoint, at time.Time) {
	rec, ok := r.metrics.(metrics.PriceUpdateRecorder)
	if !ok || len(prices) == 0 {
		return
	}
	ev := metrics.PriceUpdate{Slots: len(prices), Time: at}
	ev.Min = prices[0].Value.InexactFloat64()
	ev.Max = ev.Min
	for _, p := range prices {
		v := p.Value.InexactFloat64()
		if v < ev.Min {
			ev.Min = v
		}
		if v > ev.Max {
			ev.Max = v
		}
	}
	ev.Mean = model.Mean(prices).InexactFloat64()
	if err := rec.RecordPriceUpdate(ev); err != nil {
		r.log.Warnf("record price update: %v", err)
	}
}

// RunRefresh renews the session token of every refreshable device group.
// Each failure is notified on its own and does not stop the others.
func (r *Runner) RunRefresh(ctx context.Context) Summary {
	x := r.begin(metrics.CycleRefresh)
	var errs []error
	for id, ref := range r.refreshers {
		if err := r.refresh(ctx, id, ref); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			r.log.Errorf("refresh %s: %v", id, err)
			report.Deliver(ctx, r.notifier, r.log, report.RefreshSubject, "<br/><br/>Error : "+err.Error())
		}
	}
	outcome := metrics.OutcomeCompleted
	if len(errs) > 0 {
		outcome = metrics.OutcomeFailed
	}
	x.sum.Err = errors.Join(errs...)
	return x.finish(ctx, outcome)
}

func (r *Runner) refresh(ctx context.Context, id string, ref action.Refresher) error {
	g, err := r.store.GetActionGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if g == nil {
		return fmt.Errorf("%w: %s", action.ErrNoGroup, id)
	}
	token, err := ref.RefreshToken(ctx, *g)
	if err != nil {
		return err
	}
	if err := r.store.SetActionGroupToken(ctx, id, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	r.log.Infof("refreshed token for %s", id)
	return nil
}
