package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the cron expressions of each cycle, in five-field form.
type Config struct {
	PerPrice string `json:"per_price" yaml:"per_price"`
	Hourly   string `json:"hourly" yaml:"hourly"`
	Refresh  string `json:"refresh" yaml:"refresh"`
	Timezone string `json:"timezone" yaml:"timezone"`
}

// SetDefaults fills unset schedules.
func (c *Config) SetDefaults() {
	if c.PerPrice == "" {
		c.PerPrice = "*/30 * * * *"
	}
	if c.Hourly == "" {
		c.Hourly = "0 16-22 * * *"
	}
	if c.Refresh == "" {
		c.Refresh = "15 0 1,15 * *"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/London"
	}
}

// Validate parses every expression.
func (c Config) Validate() error {
	for name, spec := range map[string]string{"per_price": c.PerPrice, "hourly": c.Hourly, "refresh": c.Refresh} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("schedule.%s: %w", name, err)
		}
	}
	return nil
}

// NextRuns returns the first activation of each schedule after from,
// keyed by job name.
func (c Config) NextRuns(from time.Time) (map[string]time.Time, error) {
	loc := time.UTC
	if c.Timezone != "" {
		l, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		loc = l
	}
	out := make(map[string]time.Time, 3)
	for name, spec := range map[string]string{"per_price": c.PerPrice, "hourly": c.Hourly, "refresh": c.Refresh} {
		sched, err := parser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("schedule.%s: %w", name, err)
		}
		out[name] = sched.Next(from.In(loc))
	}
	return out, nil
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "yaml", "yml", "json":
	default:
		return Config{}, fmt.Errorf("unsupported config format: .%s", ext)
	}
	return DecodeConfig(f, ext)
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, nil
}
