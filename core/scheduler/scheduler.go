package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/monitoring"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger
	mu   sync.Mutex
	ctx  context.Context
	ids  map[string]cron.EntryID
}

// cronLogger adapts logger.Logger to the cron.Logger interface.
type cronLogger struct{ log logger.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.log.Debugf("%s %v", msg, kv) }
func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Errorf("%s: %v %v", msg, err, kv)
}

// New creates a Scheduler evaluating schedules in the given time zone.
func New(timezone string, log logger.Logger) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		loc = l
	}
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, log: log, ctx: context.Background(), ids: map[string]cron.EntryID{}}, nil
}

// Add registers fn under name to run on spec.
func (s *Scheduler) Add(name, spec string, fn func(context.Context)) error {
	id, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.ids[name] = id
	return nil
}

// run executes one job while holding the scheduler lock.
func (s *Scheduler) run(name string, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("job %s panicked: %v", name, r)
			s.log.Errorf("%v", err)
			monitoring.CaptureException(err, monitoring.CycleTags(name, "", monitoring.TagJob, name))
		}
	}()
	if s.ctx.Err() != nil {
		return
	}
	s.log.Debugf("job %s started", name)
	fn(s.ctx)
}

// RunNow executes a registered job immediately under the scheduler lock.
func (s *Scheduler) RunNow(name string, fn func(context.Context)) {
	s.run(name, fn)
}

// Next returns the next activation of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.ids[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Run starts the scheduler and blocks until ctx is done, then waits for the
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	for name := range s.ids {
		if next, ok := s.Next(name); ok {
			s.log.Infof("job %s next run at %s", name, next.Format(time.RFC3339))
		}
	}
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
