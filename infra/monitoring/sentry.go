package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/energyiot/config"
	coremon "github.com/kilianp07/energyiot/core/monitoring"
)

// NewSentryMonitor initializes Sentry from cfg. An empty DSN yields a
// NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	return newMonitor(sentry.CurrentHub()), nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func newMonitor(hub *sentry.Hub) *sentryMonitor {
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", "energyiot")
	})
	return &sentryMonitor{hub: hub}
}

// CaptureException sends err with tags. Errors raised by a cycle are
// grouped by cycle kind and carry the cycle id as context, so every run
// does not open a new issue.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		for k, v := range tags {
			if k == coremon.TagCycleID {
				continue
			}
			scope.SetTag(k, v)
		}
		if kind, ok := tags[coremon.TagCycle]; ok {
			cycle := sentry.Context{"kind": kind}
			if id := tags[coremon.TagCycleID]; id != "" {
				cycle["id"] = id
			}
			if g := tags[coremon.TagGroup]; g != "" {
				cycle["group"] = g
			}
			scope.SetContext("cycle", cycle)
			scope.SetFingerprint([]string{"cycle", kind, "{{ default }}"})
		}
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
