// Package override gates per-price evaluation behind manual override
// windows and creates those windows from operator requests.
package override

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/core/store"
)

// ErrInvalidRequest classifies malformed override requests.
var ErrInvalidRequest = errors.New("invalid override request")

// Gate answers whether an override window suppresses the current cycle.
type Gate struct {
	repo store.OverrideRepository
	log  logger.Logger
}

// NewGate creates a Gate reading from repo.
func NewGate(repo store.OverrideRepository, log logger.Logger) *Gate {
	return &Gate{repo: repo, log: log}
}

// Active returns the window containing now, or nil. Repository errors are
// returned unchanged.
func (g *Gate) Active(ctx context.Context, now time.Time) (*model.OverrideWindow, error) {
	w, err := g.repo.GetActiveOverride(ctx, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("override lookup: %w", err)
	}
	if w == nil || !w.Contains(now) {
		return nil, nil
	}
	g.log.Infof("override active %s - %s, per-price cycle skipped", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	return w, nil
}

// NewWindow builds a window from a start expression and an interval count.
// start is "NOW" (case-insensitive, floored to the slot) or an RFC3339
// instant.
func NewWindow(start string, interval int, now time.Time) (model.OverrideWindow, error) {
	var from time.Time
	switch s := strings.TrimSpace(start); {
	case s == "":
		return model.OverrideWindow{}, fmt.Errorf("%w: start parameter missing", ErrInvalidRequest)
	case strings.EqualFold(s, "NOW"):
		from = slot.Floor(now)
	default:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return model.OverrideWindow{}, fmt.Errorf("%w: start %q not valid", ErrInvalidRequest, s)
		}
		from = t.UTC()
	}
	if interval < 0 {
		return model.OverrideWindow{}, fmt.Errorf("%w: interval must not be negative", ErrInvalidRequest)
	}
	return model.OverrideWindow{
		Start:         from,
		End:           from.Add(time.Duration(interval) * slot.Duration),
		IntervalCount: interval,
		UpdatedAt:     now.UTC(),
	}, nil
}

// ParseInterval parses the interval query parameter.
func ParseInterval(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("%w: interval parameter missing", ErrInvalidRequest)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: interval not integer", ErrInvalidRequest)
	}
	return n, nil
}

// Create stores a window built from the request, replacing any window with
// the same start.
func Create(ctx context.Context, repo store.OverrideRepository, start, interval string, now time.Time) (model.OverrideWindow, error) {
	n, err := ParseInterval(interval)
	if err != nil {
		return model.OverrideWindow{}, err
	}
	w, err := NewWindow(start, n, now)
	if err != nil {
		return model.OverrideWindow{}, err
	}
	if err := repo.SaveOverride(ctx, w); err != nil {
		return model.OverrideWindow{}, fmt.Errorf("save override: %w", err)
	}
	return w, nil
}
