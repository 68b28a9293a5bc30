package metrics

// MultiSink fans events out to multiple sinks. Optional recorders are only
// called on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordTriggerDecision(ev TriggerDecision) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TriggerDecisionRecorder); ok {
			if err := rec.RecordTriggerDecision(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordActionAttempt(ev ActionAttempt) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ActionAttemptRecorder); ok {
			if err := rec.RecordActionAttempt(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordActionFailure(ev ActionFailureEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ActionFailureRecorder); ok {
			if err := rec.RecordActionFailure(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordPriceUpdate(ev PriceUpdate) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PriceUpdateRecorder); ok {
			if err := rec.RecordPriceUpdate(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
