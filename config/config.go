package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/factory"
	"github.com/kilianp07/energyiot/core/metrics"
	"github.com/kilianp07/energyiot/core/scheduler"
	"github.com/kilianp07/energyiot/core/trigger"
	"github.com/kilianp07/energyiot/infra/cache"
	"github.com/kilianp07/energyiot/infra/cyclelog"
	"github.com/kilianp07/energyiot/infra/logger"
	"github.com/kilianp07/energyiot/infra/mqtt"
	"github.com/kilianp07/energyiot/infra/octopus"
)

type Config struct {
	Timezone  string                 `json:"timezone"`
	Storage   StorageConfig          `json:"storage"`
	Cache     cache.Config           `json:"cache"`
	Retry     action.RetryConfig     `json:"retry"`
	RateLimit RateLimitConfig        `json:"rate_limit"`
	Devices   []factory.ModuleConfig `json:"devices"`
	Prices    octopus.Config         `json:"prices"`
	Bands     []trigger.PriceBand    `json:"bands"`
	SeedFile  string                 `json:"seed_file"`
	Notify    NotifyConfig           `json:"notify"`
	MQTT      mqtt.Config            `json:"mqtt"`
	Metrics   metrics.Config         `json:"metrics"`
	Schedule  scheduler.Config       `json:"schedule"`
	API       APIConfig              `json:"api"`
	Sentry    SentryConfig           `json:"sentry"`
	Logging   logger.Config          `json:"logging"`
	CycleLog  cyclelog.Config        `json:"cycle_log"`
}

// Load reads path, applies K_ environment overrides and validates the
// result. A .env file next to the config or in the working directory is
// loaded first.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	// An unreadable retry policy means no retries rather than a failed start.
	var retry action.RetryConfig
	if err := unmarshal(k, "retry", &retry); err != nil {
		logger.New("config").Warnf("retry: %v, falling back to a single attempt", err)
		retry = action.RetryConfig{}
	}
	k.Delete("retry")
	var cfg Config
	if err := unmarshal(k, "", &cfg); err != nil {
		return nil, err
	}
	cfg.Retry = retry
	if cfg.SeedFile != "" && !filepath.IsAbs(cfg.SeedFile) {
		cfg.SeedFile = filepath.Join(filepath.Dir(path), cfg.SeedFile)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func unmarshal(k *koanf.Koanf, path string, out any) error {
	return k.UnmarshalWithConf(path, out, koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				decimalHook,
			),
			Result:           out,
			WeaklyTypedInput: true,
			TagName:          "json",
		},
	})
}

func loadDotEnv(paths ...string) error {
	seen := map[string]bool{}
	for _, p := range paths {
		abs, _ := filepath.Abs(p)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook accepts prices written as YAML numbers or strings.
func decimalHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return data, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/London"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = c.Timezone
	}
	c.Storage.SetDefaults()
	c.Cache.SetDefaults()
	c.Retry = c.Retry.Normalize()
	c.Prices.SetDefaults()
	c.Notify.SMTP.SetDefaults()
	c.Schedule.SetDefaults()
	c.API.SetDefaults()
	c.CycleLog.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	checks := []struct {
		name string
		err  error
	}{
		{"storage", c.Storage.Validate()},
		{"rate_limit", c.RateLimit.Validate()},
		{"notify", c.Notify.Validate()},
		{"schedule", c.Schedule.Validate()},
		{"cycle_log", c.CycleLog.Validate()},
	}
	if c.Prices.Enabled() {
		checks = append(checks, struct {
			name string
			err  error
		}{"prices", c.Prices.Validate()})
	}
	for _, ch := range checks {
		if ch.err != nil {
			return fmt.Errorf("%s: %w", ch.name, ch.err)
		}
	}
	for i, d := range c.Devices {
		if d.Type == "" {
			return fmt.Errorf("devices[%d]: type is required", i)
		}
	}
	return nil
}
