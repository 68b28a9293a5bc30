package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/energyiot/core/metrics"
)

// PromSink records cycle, trigger and device call metrics in Prometheus.
type PromSink struct {
	cycles    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	decisions *prometheus.CounterVec
	attempts  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	lastPrice *prometheus.GaugeVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register registers c or returns the collector already registered under
// the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "energyiot_cycles_total",
		Help: "Finished evaluation cycles by kind and outcome",
	}, []string{"kind", "outcome"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "energyiot_cycle_duration_seconds",
		Help:    "Duration of evaluation cycles",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "energyiot_trigger_decisions_total",
		Help: "Trigger decisions by type and result",
	}, []string{"type", "result"})); err != nil {
		return nil, err
	}
	if s.attempts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "energyiot_action_attempts_total",
		Help: "Device gateway calls by group and success",
	}, []string{"group", "success"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "energyiot_action_latency_seconds",
		Help:    "Latency of device gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"group"})); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "energyiot_action_failures_total",
		Help: "Actions that failed after retries",
	}, []string{"group", "reason"})); err != nil {
		return nil, err
	}
	if s.lastPrice, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "energyiot_published_price_pence",
		Help: "Statistics of the last published tariff period",
	}, []string{"stat"})); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordCycle counts the cycle and observes its duration.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(string(ev.Kind), ev.Outcome).Inc()
	s.duration.WithLabelValues(string(ev.Kind)).Observe(ev.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordTriggerDecision(ev coremetrics.TriggerDecision) error {
	s.decisions.WithLabelValues(ev.Type, ev.Result).Inc()
	return nil
}

func (s *PromSink) RecordActionAttempt(ev coremetrics.ActionAttempt) error {
	s.attempts.WithLabelValues(ev.GroupID, strconv.FormatBool(ev.Success)).Inc()
	s.latency.WithLabelValues(ev.GroupID).Observe(ev.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordActionFailure(ev coremetrics.ActionFailureEvent) error {
	s.failures.WithLabelValues(ev.GroupID, ev.Reason).Inc()
	return nil
}

func (s *PromSink) RecordPriceUpdate(ev coremetrics.PriceUpdate) error {
	s.lastPrice.WithLabelValues("min").Set(ev.Min)
	s.lastPrice.WithLabelValues("max").Set(ev.Max)
	s.lastPrice.WithLabelValues("mean").Set(ev.Mean)
	s.lastPrice.WithLabelValues("slots").Set(float64(ev.Slots))
	return nil
}
