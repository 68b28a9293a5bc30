package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/energyiot/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_ = sink.RecordCycle(coremetrics.CycleEvent{Kind: coremetrics.CycleHourly, Outcome: coremetrics.OutcomeSkipped, Duration: time.Second})
	_ = sink.RecordTriggerDecision(coremetrics.TriggerDecision{Type: "Section_Low", Result: "fire"})
	_ = sink.RecordActionAttempt(coremetrics.ActionAttempt{GroupID: "Kasa", Success: false})
	_ = sink.RecordActionAttempt(coremetrics.ActionAttempt{GroupID: "Kasa", Success: true})
	_ = sink.RecordActionFailure(coremetrics.ActionFailureEvent{GroupID: "Kasa", Reason: "device call error"})
	_ = sink.RecordPriceUpdate(coremetrics.PriceUpdate{Slots: 48, Min: -1.5, Max: 35, Mean: 12})

	if v := testutil.ToFloat64(sink.cycles.WithLabelValues("hourly", "skipped")); v != 1 {
		t.Fatalf("cycles = %v", v)
	}
	if v := testutil.ToFloat64(sink.attempts.WithLabelValues("Kasa", "true")); v != 1 {
		t.Fatalf("attempts = %v", v)
	}
	if v := testutil.ToFloat64(sink.lastPrice.WithLabelValues("min")); v != -1.5 {
		t.Fatalf("min price = %v", v)
	}
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = a.RecordTriggerDecision(coremetrics.TriggerDecision{Type: "Price_Above", Result: "skip"})
	if v := testutil.ToFloat64(b.decisions.WithLabelValues("Price_Above", "skip")); v != 1 {
		t.Fatalf("collectors not shared, got %v", v)
	}
}
