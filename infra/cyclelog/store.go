// Package cyclelog keeps an audit trail of cycles, trigger decisions and
// delivered reports. Records are appended from the event bus and queried by
// the HTTP API.
package cyclelog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/energyiot/core/events"
)

// Record kinds.
const (
	KindCycle   = "cycle"
	KindTrigger = "trigger"
	KindReport  = "report"
)

// Report is a notification captured in the log.
type Report struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Record is one line of the cycle log.
type Record struct {
	Timestamp time.Time            `json:"timestamp"`
	Kind      string               `json:"kind"`
	CycleID   string               `json:"cycle_id,omitempty"`
	Cycle     *events.CycleEvent   `json:"cycle,omitempty"`
	Trigger   *events.TriggerEvent `json:"trigger,omitempty"`
	Report    *Report              `json:"report,omitempty"`
}

// Query filters records. Zero values match everything.
type Query struct {
	Start   time.Time
	End     time.Time
	Kind    string
	CycleID string
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.CycleID != "" && r.CycleID != q.CycleID {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Config selects and tunes the backend.
type Config struct {
	// Backend selects the log store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "cycles.log"
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Open builds the configured store.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == "sqlite" {
		return NewSQLiteStore(cfg.Path)
	}
	return NewJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
}
