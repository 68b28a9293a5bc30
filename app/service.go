package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/energyiot/api"
	"github.com/kilianp07/energyiot/config"
	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/cycle"
	"github.com/kilianp07/energyiot/core/events"
	coremetrics "github.com/kilianp07/energyiot/core/metrics"
	coremon "github.com/kilianp07/energyiot/core/monitoring"
	coremqtt "github.com/kilianp07/energyiot/core/mqtt"
	"github.com/kilianp07/energyiot/core/report"
	"github.com/kilianp07/energyiot/core/scheduler"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/core/store"
	"github.com/kilianp07/energyiot/core/trigger"
	"github.com/kilianp07/energyiot/infra/cache"
	"github.com/kilianp07/energyiot/infra/cyclelog"
	"github.com/kilianp07/energyiot/infra/devices"
	"github.com/kilianp07/energyiot/infra/logger"
	"github.com/kilianp07/energyiot/infra/memory"
	_ "github.com/kilianp07/energyiot/infra/metrics" // metrics sink factories
	"github.com/kilianp07/energyiot/infra/monitoring"
	"github.com/kilianp07/energyiot/infra/mqtt"
	"github.com/kilianp07/energyiot/infra/notify"
	"github.com/kilianp07/energyiot/infra/octopus"
	"github.com/kilianp07/energyiot/infra/postgres"
	"github.com/kilianp07/energyiot/internal/eventbus"
)

// Job names used by the scheduler and the CLI.
const (
	JobPerPrice = "per_price"
	JobHourly   = "hourly"
	JobRefresh  = "refresh"
)

// Service owns the engine and its infrastructure.
type Service struct {
	Store    store.Store
	Runner   *cycle.Runner
	Calendar slot.Calendar
	Prices   *octopus.Client
	CycleLog cyclelog.Store

	cfg      *config.Config
	log      logger.Logger
	sched    *scheduler.Scheduler
	cycles   *eventbus.TypedBus[events.CycleEvent]
	recorder *cyclelog.Recorder
	closers  []func() error
}

// New builds a Service from the configuration. Seed definitions are applied
// to the store before it returns.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	logger.Configure(cfg.Logging)
	s := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	s.closers = append(s.closers, func() error { coremon.Flush(2 * time.Second); return nil })

	if s.Calendar, err = slot.NewCalendar(cfg.Timezone); err != nil {
		return nil, err
	}
	if s.Store, err = s.openStore(ctx); err != nil {
		return nil, err
	}
	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		if err := seed.Apply(ctx, s.Store); err != nil {
			return nil, err
		}
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var deps devices.Deps
	deps.HTTP = &http.Client{Timeout: 10 * time.Second}
	var broker *mqtt.PahoClient
	if cfg.MQTT.Enabled() {
		if broker, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		deps.MQTT = broker
		s.closers = append(s.closers, func() error { broker.Disconnect(); return nil })
	}
	gateways, refreshers, err := devices.Build(cfg.Devices, deps)
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}

	dispatcher := action.NewDispatcher(s.Store, gateways, cfg.Retry, logger.New("dispatcher")).WithMetrics(sink)
	if cfg.RateLimit.Enabled() {
		dispatcher.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	evaluator := trigger.NewEvaluator(s.Store, s.Store, dispatcher, s.Calendar, logger.New("trigger")).
		WithMetrics(sink).
		WithBands(cfg.Bands)

	if s.CycleLog, err = cyclelog.Open(cfg.CycleLog); err != nil {
		return nil, fmt.Errorf("cycle log: %w", err)
	}
	s.closers = append(s.closers, s.CycleLog.Close)
	s.cycles = eventbus.NewTyped[events.CycleEvent]()
	s.recorder = cyclelog.NewRecorder(s.CycleLog, logger.New("cyclelog"))

	notifier, err := s.notifier(broker)
	if err != nil {
		return nil, err
	}

	opts := []cycle.Option{
		cycle.WithNotifier(notifier),
		cycle.WithMetrics(sink),
		cycle.WithEventBuses(s.cycles, nil),
		cycle.WithRefreshers(refreshers),
	}
	if cfg.Prices.Enabled() {
		if s.Prices, err = octopus.New(cfg.Prices, nil); err != nil {
			return nil, fmt.Errorf("prices: %w", err)
		}
		opts = append(opts, cycle.WithPriceSource(s.Prices))
	}
	s.Runner = cycle.NewRunner(s.Store, evaluator, s.Calendar, logger.New("cycle"), opts...)

	if s.sched, err = scheduler.New(cfg.Schedule.Timezone, logger.New("scheduler")); err != nil {
		return nil, err
	}
	jobs := []struct{ name, spec string }{
		{JobPerPrice, cfg.Schedule.PerPrice},
		{JobHourly, cfg.Schedule.Hourly},
		{JobRefresh, cfg.Schedule.Refresh},
	}
	for _, j := range jobs {
		if err := s.sched.Add(j.name, j.spec, s.job(j.name)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) openStore(ctx context.Context) (store.Store, error) {
	var st store.Store = memory.New()
	if s.cfg.Storage.Backend == "postgres" {
		pg, err := postgres.Open(ctx, s.cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		st = pg
	}
	if s.cfg.Cache.Enabled() {
		rdb, err := cache.Dial(ctx, s.cfg.Cache)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)
		st = cache.New(st, rdb, s.cfg.Cache, logger.New("cache"))
	}
	return st, nil
}

func (s *Service) notifier(broker *mqtt.PahoClient) (report.Notifier, error) {
	var ns []report.Notifier
	n := s.cfg.Notify
	if n.SMTP.Enabled() {
		ns = append(ns, notify.NewSMTP(n.SMTP))
	}
	if n.MQTTTopic != "" {
		if broker == nil {
			return nil, fmt.Errorf("notify.mqtt_topic: %w", coremqtt.ErrNoClient)
		}
		m, err := notify.NewMQTT(broker, n.MQTTTopic, n.Retained)
		if err != nil {
			return nil, err
		}
		ns = append(ns, m)
	}
	if n.LogStore {
		ns = append(ns, cyclelog.Notifier{Store: s.CycleLog})
	}
	return notify.Combine(ns...), nil
}

// Cycle runs one pass of the named job.
func (s *Service) Cycle(ctx context.Context, name string) (cycle.Summary, error) {
	switch name {
	case JobPerPrice:
		return s.Runner.RunPerPrice(ctx), nil
	case JobHourly:
		return s.Runner.RunHourly(ctx), nil
	case JobRefresh:
		return s.Runner.RunRefresh(ctx), nil
	}
	return cycle.Summary{}, fmt.Errorf("unknown cycle %q", name)
}

func (s *Service) job(name string) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := s.Cycle(ctx, name); err != nil {
			s.log.Errorf("%v", err)
		}
	}
}

// RunOnce executes a single cycle through the scheduler lock and records it
// in the cycle log.
func (s *Service) RunOnce(ctx context.Context, name string) (cycle.Summary, error) {
	rctx, cancel := context.WithCancel(ctx)
	s.recorder.Start(rctx, s.cycles)
	var sum cycle.Summary
	var err error
	s.sched.RunNow(name, func(context.Context) { sum, err = s.Cycle(rctx, name) })
	s.cycles.Close()
	s.recorder.Wait()
	cancel()
	return sum, err
}

// Run starts the scheduler, the cycle log recorder and the API server, and
// blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	// The recorder stops when the bus closes so the last cycle is kept.
	rctx, rcancel := context.WithCancel(context.Background())
	defer rcancel()
	s.recorder.Start(rctx, s.cycles)

	errc := make(chan error, 1)
	var srv *http.Server
	if s.cfg.API.Addr != "" {
		srv = &http.Server{
			Addr: s.cfg.API.Addr,
			Handler: api.NewRouter(api.Deps{
				Store:       s.Store,
				Cycles:      s.CycleLog,
				Metrics:     promhttp.Handler(),
				Token:       s.cfg.API.Token,
				CORSOrigins: s.cfg.API.CORSOrigins,
				Log:         logger.New("api"),
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.log.Infof("api listening on %s", s.cfg.API.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	sctx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan struct{})
	go func() {
		s.sched.Run(sctx)
		close(done)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	stop()
	if srv != nil {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdown)
		cancel()
	}
	<-done
	s.cycles.Close()
	s.recorder.Wait()
	return runErr
}

// Close releases resources in reverse order of acquisition.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
