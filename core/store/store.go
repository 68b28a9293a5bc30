// Package store declares the repository contracts the engine reads and
// writes through. Lookups that find nothing return a nil pointer and a nil
// error; a non-nil error always means the backend could not be reached.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/energyiot/core/model"
)

// PriceRepository persists half-hour price points.
type PriceRepository interface {
	GetPriceAt(ctx context.Context, slot time.Time) (*model.PricePoint, error)
	// GetPricesInRange returns the prices with from <= slot < to ordered by slot.
	GetPricesInRange(ctx context.Context, from, to time.Time) ([]model.PricePoint, error)
	SavePrices(ctx context.Context, prices []model.PricePoint) error
}

// TriggerRepository loads active trigger definitions.
type TriggerRepository interface {
	// GetActiveHourlyTriggers returns active hourly triggers sorted by order.
	GetActiveHourlyTriggers(ctx context.Context) ([]model.Trigger, error)
	// GetActivePerPriceTriggers returns active per-price triggers enabled for mode.
	GetActivePerPriceTriggers(ctx context.Context, mode string) ([]model.Trigger, error)
	SaveTrigger(ctx context.Context, t model.Trigger) error
}

// OverrideRepository stores manual override windows keyed by start.
type OverrideRepository interface {
	GetActiveOverride(ctx context.Context, now time.Time) (*model.OverrideWindow, error)
	SaveOverride(ctx context.Context, w model.OverrideWindow) error
}

// LowestSectionStore keeps the cheapest section found by each hourly cycle.
type LowestSectionStore interface {
	SaveLowestSection(ctx context.Context, rec model.LowestSectionRecord) error
	// GetLowestSectionForPeriod returns the cheapest record whose reference
	// slot lies in [asOf - days*24h, asOf + 24h). Ties go to the earliest.
	GetLowestSectionForPeriod(ctx context.Context, days int, asOf time.Time) (*model.LowestSectionRecord, error)
}

// ActionGroupStore holds device group sessions.
type ActionGroupStore interface {
	GetActionGroup(ctx context.Context, id string) (*model.ActionGroup, error)
	SetActionGroupToken(ctx context.Context, id, token string) error
	SaveActionGroup(ctx context.Context, g model.ActionGroup) error
}

// SettingsStore persists named runtime settings such as the operating mode.
type SettingsStore interface {
	GetSetting(ctx context.Context, name string) (string, bool, error)
	SetSetting(ctx context.Context, name, value string) error
}

// Store aggregates every repository.
type Store interface {
	PriceRepository
	TriggerRepository
	OverrideRepository
	LowestSectionStore
	ActionGroupStore
	SettingsStore
}

// MultiDayWindow returns the reference slot range considered by
// GetLowestSectionForPeriod.
func MultiDayWindow(days int, asOf time.Time) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	return asOf.Add(-time.Duration(days) * 24 * time.Hour), asOf.Add(24 * time.Hour)
}
