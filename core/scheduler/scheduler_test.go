package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kilianp07/energyiot/infra/logger"
)

func TestDecodeConfigDefaults(t *testing.T) {
	cfg, err := DecodeConfig(bytes.NewBufferString("hourly: \"0 17 * * *\"\n"), "yaml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Hourly != "0 17 * * *" || cfg.PerPrice != "*/30 * * * *" || cfg.Refresh != "15 0 1,15 * *" {
		t.Fatalf("bad cfg %#v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.json")
	if err := os.WriteFile(path, []byte(`{"per_price":"0,30 * * * *","timezone":"UTC"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PerPrice != "0,30 * * * *" || cfg.Timezone != "UTC" {
		t.Fatalf("bad cfg %#v", cfg)
	}
	if _, err := LoadConfig(path + ".txt"); err == nil {
		t.Fatalf("expected error for wrong ext")
	}
}

func TestValidateRejectsBadExpression(t *testing.T) {
	cfg := Config{PerPrice: "every half hour"}
	cfg.SetDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAddAndNext(t *testing.T) {
	s, err := New("UTC", logger.NopLogger{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Add("per_price", "*/30 * * * *", func(context.Context) {}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("bad", "nope", func(context.Context) {}); err == nil {
		t.Fatalf("expected parse error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	next, ok := s.Next("per_price")
	if !ok || next.IsZero() || next.Minute()%30 != 0 {
		t.Fatalf("unexpected next %v", next)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	s, err := New("", logger.NopLogger{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var calls atomic.Int32
	s.RunNow("boom", func(context.Context) {
		calls.Add(1)
		panic("kaboom")
	})
	s.RunNow("after", func(context.Context) { calls.Add(1) })
	if calls.Load() != 2 {
		t.Fatalf("expected both jobs to run, got %d", calls.Load())
	}
}

func TestJobsDoNotOverlap(t *testing.T) {
	s, _ := New("", logger.NopLogger{})
	var running, maxRunning atomic.Int32
	job := func(context.Context) {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
	}
	done := make(chan struct{}, 2)
	go func() { s.RunNow("a", job); done <- struct{}{} }()
	go func() { s.RunNow("b", job); done <- struct{}{} }()
	<-done
	<-done
	if maxRunning.Load() != 1 {
		t.Fatalf("jobs overlapped")
	}
}

func TestNextRuns(t *testing.T) {
	cfg := Config{Timezone: "UTC"}
	cfg.SetDefaults()
	from := time.Date(2024, 3, 1, 10, 10, 0, 0, time.UTC)
	next, err := cfg.NextRuns(from)
	if err != nil {
		t.Fatalf("next runs: %v", err)
	}
	want := map[string]time.Time{
		"per_price": time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		"hourly":    time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC),
		"refresh":   time.Date(2024, 3, 15, 0, 15, 0, 0, time.UTC),
	}
	for name, w := range want {
		if !next[name].Equal(w) {
			t.Fatalf("%s: got %s want %s", name, next[name], w)
		}
	}
}
