package config

import (
	"errors"
	"fmt"

	"github.com/kilianp07/energyiot/infra/notify"
	"github.com/kilianp07/energyiot/infra/postgres"
)

// StorageConfig selects the repository backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend  string          `json:"backend"`
	Postgres postgres.Config `json:"postgres"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "postgres" {
		c.Postgres.SetDefaults()
	}
}

func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		return c.Postgres.Validate()
	}
	return fmt.Errorf("unknown backend %s", c.Backend)
}

// RateLimitConfig paces device calls. Zero RPS disables pacing.
type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

func (c RateLimitConfig) Enabled() bool { return c.RPS > 0 }

func (c RateLimitConfig) Validate() error {
	if c.RPS < 0 || c.Burst < 0 {
		return errors.New("rps and burst must not be negative")
	}
	return nil
}

// NotifyConfig lists the report channels. Every enabled channel receives
// every report.
type NotifyConfig struct {
	SMTP      notify.SMTPConfig `json:"smtp"`
	MQTTTopic string            `json:"mqtt_topic"`
	Retained  bool              `json:"retained"`
	// LogStore also appends reports to the cycle log.
	LogStore bool `json:"log_store"`
}

func (c NotifyConfig) Validate() error { return c.SMTP.Validate() }

// APIConfig configures the operator HTTP API. An empty Addr disables it.
type APIConfig struct {
	Addr        string   `json:"addr"`
	Token       string   `json:"token"`
	CORSOrigins []string `json:"cors_origins"`
}

func (c *APIConfig) SetDefaults() {
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}
