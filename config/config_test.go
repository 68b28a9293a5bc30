package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/infra/memory"
)

func write(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.yaml", `timezone: "Europe/London"
storage:
  backend: "postgres"
  postgres:
    dsn: "postgres://energy@localhost/energy"
    query_timeout: "3s"
cache:
  addr: "localhost:6379"
  ttl: "1h"
retry:
  count: 3
  time_ms: 500
rate_limit:
  rps: 2
  burst: 1
devices:
  - type: "kasa"
    conf:
      group: "Kasa"
prices:
  product: "AGILE-24-10-01"
  tariff: "E-1R-AGILE-24-10-01-C"
bands:
  - from: 0
    to: 10.5
    colour: "green"
mqtt:
  broker: "tcp://localhost:1883"
  ack_topic: "energyiot/relays/+/ack"
metrics:
  sinks:
    - type: "nop"
api:
  addr: ":8080"
logging:
  level: "debug"
cycle_log:
  backend: "sqlite"
  path: "cycles.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"storage.backend", cfg.Storage.Backend, "postgres"},
		{"postgres.query_timeout", cfg.Storage.Postgres.QueryTimeout, 3 * time.Second},
		{"postgres.max_open_conns", cfg.Storage.Postgres.MaxOpenConns, 10},
		{"cache.ttl", cfg.Cache.TTL, time.Hour},
		{"retry.count", cfg.Retry.Count, 3},
		{"retry.time_ms", cfg.Retry.TimeMs, 500},
		{"rate_limit.rps", cfg.RateLimit.RPS, 2.0},
		{"devices", len(cfg.Devices) == 1 && cfg.Devices[0].Type == "kasa", true},
		{"prices.base_url", cfg.Prices.BaseURL, "https://api.octopus.energy"},
		{"band.colour", cfg.Bands[0].Colour, "green"},
		{"band.to", cfg.Bands[0].To.String(), "10.5"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"schedule.per_price", cfg.Schedule.PerPrice, "*/30 * * * *"},
		{"schedule.timezone", cfg.Schedule.Timezone, "Europe/London"},
		{"api.cors", cfg.API.CORSOrigins[0], "*"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"cycle_log.backend", cfg.CycleLog.Backend, "sqlite"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(write(t, dir, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "Europe/London", cfg.Timezone)
	assert.Equal(t, "jsonl", cfg.CycleLog.Backend)
	assert.False(t, cfg.Prices.Enabled())
	assert.False(t, cfg.Cache.Enabled())
}

func TestNegativeRetryFallsBackToZero(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(write(t, dir, "config.yaml", "retry:\n  count: -2\n  time_ms: -5\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Retry.Count)
	assert.Equal(t, 0, cfg.Retry.TimeMs)
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.yaml", "retry:\n  count: 1\n")
	t.Setenv("K_RETRY__COUNT", "4")
	t.Setenv("K_API__TOKEN", "secret")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Retry.Count)
	assert.Equal(t, "secret", cfg.API.Token)
}

func TestUnreadableRetryFallsBackToSingleAttempt(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.yaml", "retry:\n  count: three\n  time_ms: 500\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Retry.Count)
	assert.Equal(t, 0, cfg.Retry.TimeMs)
}

func TestEnvOverrideNestedSection(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.yaml", "storage:\n  backend: memory\n")
	t.Setenv("K_CYCLE_LOG__MAX_BACKUPS", "9")
	t.Setenv("K_SCHEDULE__HOURLY", "0 17 * * *")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.CycleLog.MaxBackups)
	assert.Equal(t, "0 17 * * *", cfg.Schedule.Hourly)
}

func TestDotEnvLoaded(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, ".env", "K_TIMEZONE=Europe/Paris\n")
	path := write(t, dir, "config.yaml", "storage:\n  backend: memory\n")
	t.Cleanup(func() { os.Unsetenv("K_TIMEZONE") })
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown backend":  "storage:\n  backend: mongo\n",
		"postgres no dsn":  "storage:\n  backend: postgres\n",
		"bad timezone":     "timezone: Mars/Olympus\n",
		"bad schedule":     "schedule:\n  hourly: \"not a cron\"\n",
		"smtp without to":  "notify:\n  smtp:\n    host: smtp.example.com\n    from: a@example.com\n",
		"device type":      "devices:\n  - conf: {}\n",
		"negative limiter": "rate_limit:\n  rps: -1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, dir, "config.yaml", data))
			assert.Error(t, err)
		})
	}
	_, err := Load(write(t, dir, "config.toml", ""))
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "seed.yaml", `triggers:
  - id: "cheap"
    name: "Cheap power"
    interval: "PerPrice"
    type: "Price_Below"
    active: true
    value: 5.5
    modes:
      - mode: "Default"
        active: true
    actions:
      - item_id: "a1"
        item_name: "Boiler"
        group_id: "Kasa"
        device_id: "dev-1"
        state_to: 1
groups:
  - id: "Kasa"
    device_url: "https://wap.tplinkcloud.com"
`)
	seed, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, seed.Triggers, 1)
	tr := seed.Triggers[0]
	assert.Equal(t, model.CyclePerPrice, tr.Cycle)
	assert.True(t, tr.Threshold().Equal(decimal.RequireFromString("5.5")))

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SetActionGroupToken(ctx, "Kasa", "kept"))
	require.NoError(t, seed.Apply(ctx, st))

	got, err := st.GetActivePerPriceTriggers(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	g, err := st.GetActionGroup(ctx, "Kasa")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "kept", g.Token)
	assert.Equal(t, "https://wap.tplinkcloud.com", g.DeviceURL)

	_, err = LoadSeed(write(t, dir, "bad.yaml", "triggers:\n  - name: x\n"))
	assert.Error(t, err)
}
