package cyclelog

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/energyiot/core/events"
	"github.com/kilianp07/energyiot/infra/logger"
	"github.com/kilianp07/energyiot/internal/eventbus"
)

// Recorder appends bus events to a Store until its context ends.
type Recorder struct {
	store Store
	log   logger.Logger
	wg    sync.WaitGroup
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Recorder{store: store, log: log}
}

// Start subscribes to the cycle bus. Each cycle event is stored as one
// trigger record per decision followed by the cycle record. Wait returns
// once the subscription drains.
func (r *Recorder) Start(ctx context.Context, cycles *eventbus.TypedBus[events.CycleEvent]) {
	if cycles == nil {
		return
	}
	ch := cycles.Subscribe()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cycles.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				r.record(ev)
			}
		}
	}()
}

func (r *Recorder) record(ev events.CycleEvent) {
	for i := range ev.Decisions {
		d := ev.Decisions[i]
		r.append(Record{Timestamp: d.Time, Kind: KindTrigger, CycleID: ev.ID, Trigger: &d})
	}
	ev.Decisions = nil
	r.append(Record{Timestamp: ev.Start.Add(ev.Duration), Kind: KindCycle, CycleID: ev.ID, Cycle: &ev})
}

// Wait blocks until the subscriber goroutines exit.
func (r *Recorder) Wait() { r.wg.Wait() }

func (r *Recorder) append(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Append(ctx, rec); err != nil {
		r.log.Errorf("cycle log append: %v", err)
	}
}

// Notifier stores delivered reports in the cycle log.
type Notifier struct {
	Store Store
	Now   func() time.Time
}

// Send implements report.Notifier.
func (n Notifier) Send(ctx context.Context, subject, body string) error {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return n.Store.Append(ctx, Record{Timestamp: now().UTC(), Kind: KindReport, Report: &Report{Subject: subject, Body: body}})
}
