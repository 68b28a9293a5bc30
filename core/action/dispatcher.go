package action

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/metrics"
	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/store"
)

// Dispatcher executes trigger actions sequentially against device gateways.
type Dispatcher struct {
	gateways map[string]Gateway
	groups   store.ActionGroupStore
	retry    RetryConfig
	log      logger.Logger
	limiter  *rate.Limiter
	metrics  metrics.MetricsSink
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. Gateways are keyed by their group id.
func NewDispatcher(groups store.ActionGroupStore, gateways []Gateway, retry RetryConfig, log logger.Logger) *Dispatcher {
	gw := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		gw[g.Group()] = g
	}
	return &Dispatcher{
		gateways: gw,
		groups:   groups,
		retry:    retry.Normalize(),
		log:      log,
		metrics:  metrics.NopSink{},
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// WithRateLimit paces gateway calls to rps with the given burst.
func (d *Dispatcher) WithRateLimit(rps float64, burst int) *Dispatcher {
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return d
}

// WithMetrics records attempts and failures on sink.
func (d *Dispatcher) WithMetrics(sink metrics.MetricsSink) *Dispatcher {
	if sink != nil {
		d.metrics = sink
	}
	return d
}

// Gateways returns the registered gateways.
func (d *Dispatcher) Gateways() []Gateway {
	out := make([]Gateway, 0, len(d.gateways))
	for _, g := range d.gateways {
		out = append(out, g)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dispatch applies every action of t in order and returns one failure per
// action that could not be applied. A failing action never stops the
// remaining ones.
func (d *Dispatcher) Dispatch(ctx context.Context, t model.Trigger) []model.ActionFailure {
	var failures []model.ActionFailure
	groups := make(map[string]*model.ActionGroup)
	for _, a := range t.Actions {
		if f := d.apply(ctx, t.Name, a, groups); f != nil {
			d.log.Errorf("trigger %s: action %s failed: %s", t.Name, a.ItemName, f.Detail)
			d.recordFailure(*f)
			failures = append(failures, *f)
		}
	}
	return failures
}

func (d *Dispatcher) apply(ctx context.Context, trigger string, a model.Action, cache map[string]*model.ActionGroup) *model.ActionFailure {
	gw, ok := d.gateways[a.GroupID]
	if !ok {
		return d.failure(trigger, a, ErrNoGateway.Error(), fmt.Sprintf("group %q", a.GroupID), 0)
	}
	group, ok := cache[a.GroupID]
	if !ok {
		g, err := d.groups.GetActionGroup(ctx, a.GroupID)
		if err != nil {
			return d.failure(trigger, a, "action group lookup failed", err.Error(), 0)
		}
		cache[a.GroupID] = g
		group = g
	}
	if group == nil {
		return d.failure(trigger, a, ErrNoGroup.Error(), fmt.Sprintf("group %q", a.GroupID), 0)
	}

	for attempt := 0; ; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return d.failure(trigger, a, "dispatch cancelled", err.Error(), attempt)
			}
		}
		start := d.now()
		res := gw.SetRelayState(ctx, *group, a.DeviceID, a.TargetState)
		d.recordAttempt(a, attempt, res, d.now().Sub(start))

		switch {
		case res.Err != nil:
			return d.failure(trigger, a, "device call error", res.Err.Error(), attempt)
		case res.TransportOK() && res.VendorCode != 0:
			return d.failure(trigger, a, "device returned error code", res.String(), attempt)
		case res.TransportOK():
			d.log.Debugf("trigger %s: %s set to %d", trigger, a.ItemName, a.TargetState)
			return nil
		}
		if attempt >= d.retry.Count {
			return d.failure(trigger, a, "device call status not OK", res.String(), attempt)
		}
		d.log.Warnf("trigger %s: %s %s, retry %d/%d", trigger, a.ItemName, res, attempt+1, d.retry.Count)
		if err := d.sleep(ctx, time.Duration(d.retry.TimeMs)*time.Millisecond); err != nil {
			return d.failure(trigger, a, "dispatch cancelled", err.Error(), attempt)
		}
	}
}

func (d *Dispatcher) failure(trigger string, a model.Action, msg, detail string, retries int) *model.ActionFailure {
	return &model.ActionFailure{
		TriggerName: trigger,
		ItemID:      a.ItemID,
		ItemName:    a.ItemName,
		GroupID:     a.GroupID,
		Message:     msg,
		Detail:      detail,
		Retries:     retries,
		Timestamp:   d.now().UTC(),
	}
}

func (d *Dispatcher) recordAttempt(a model.Action, attempt int, res Result, latency time.Duration) {
	rec, ok := d.metrics.(metrics.ActionAttemptRecorder)
	if !ok {
		return
	}
	if err := rec.RecordActionAttempt(metrics.ActionAttempt{
		GroupID:    a.GroupID,
		DeviceID:   a.DeviceID,
		State:      a.TargetState,
		Attempt:    attempt,
		StatusCode: res.StatusCode,
		Success:    res.OK(),
		Latency:    latency,
		Time:       d.now(),
	}); err != nil {
		d.log.Warnf("record action attempt: %v", err)
	}
}

func (d *Dispatcher) recordFailure(f model.ActionFailure) {
	rec, ok := d.metrics.(metrics.ActionFailureRecorder)
	if !ok {
		return
	}
	if err := rec.RecordActionFailure(metrics.ActionFailureEvent{
		GroupID: f.GroupID,
		Trigger: f.TriggerName,
		Item:    f.ItemName,
		Reason:  f.Message,
		Retries: f.Retries,
		Time:    f.Timestamp,
	}); err != nil {
		d.log.Warnf("record action failure: %v", err)
	}
}
