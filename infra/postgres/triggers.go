package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/energyiot/core/model"
)

func (s *Store) activeTriggers(ctx context.Context, cycle model.CycleClass) ([]model.Trigger, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var defs [][]byte
	err := s.db.SelectContext(ctx, &defs,
		`SELECT definition FROM triggers WHERE active AND cycle = $1 ORDER BY sort_order, id`, string(cycle))
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	out := make([]model.Trigger, 0, len(defs))
	for _, d := range defs {
		var t model.Trigger
		if err := json.Unmarshal(d, &t); err != nil {
			return nil, fmt.Errorf("failed to decode trigger: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) GetActiveHourlyTriggers(ctx context.Context) ([]model.Trigger, error) {
	return s.activeTriggers(ctx, model.CycleHourly)
}

func (s *Store) GetActivePerPriceTriggers(ctx context.Context, mode string) ([]model.Trigger, error) {
	all, err := s.activeTriggers(ctx, model.CyclePerPrice)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.HasMode(mode) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) SaveTrigger(ctx context.Context, t model.Trigger) error {
	def, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode trigger: %w", err)
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triggers (id, cycle, sort_order, active, definition)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			cycle = EXCLUDED.cycle,
			sort_order = EXCLUDED.sort_order,
			active = EXCLUDED.active,
			definition = EXCLUDED.definition`,
		t.ID, string(t.Cycle), t.Order, t.Active, def)
	if err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}
	return nil
}

func (s *Store) GetActiveOverride(ctx context.Context, now time.Time) (*model.OverrideWindow, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var w model.OverrideWindow
	err := s.db.GetContext(ctx, &w, `
		SELECT start_utc, end_utc, interval_count, updated_at
		FROM overrides
		WHERE start_utc <= $1 AND end_utc >= $1
		ORDER BY start_utc
		LIMIT 1`, now.UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	w.Start, w.End, w.UpdatedAt = w.Start.UTC(), w.End.UTC(), w.UpdatedAt.UTC()
	return &w, nil
}

func (s *Store) SaveOverride(ctx context.Context, w model.OverrideWindow) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (start_utc, end_utc, interval_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (start_utc) DO UPDATE SET
			end_utc = EXCLUDED.end_utc,
			interval_count = EXCLUDED.interval_count,
			updated_at = EXCLUDED.updated_at`,
		w.Start.UTC(), w.End.UTC(), w.IntervalCount, w.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return nil
}

func (s *Store) GetActionGroup(ctx context.Context, id string) (*model.ActionGroup, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var g model.ActionGroup
	err := s.db.GetContext(ctx, &g, `
		SELECT id, token, refresh_token, auth_url, device_url, terminal_uuid, last_updated
		FROM action_groups WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get action group: %w", err)
	}
	return &g, nil
}

// SetActionGroupToken updates the token, creating the group row if needed.
func (s *Store) SetActionGroupToken(ctx context.Context, id, token string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_groups (id, token, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token, last_updated = EXCLUDED.last_updated`,
		id, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set action group token: %w", err)
	}
	return nil
}

func (s *Store) SaveActionGroup(ctx context.Context, g model.ActionGroup) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	if g.LastUpdated.IsZero() {
		g.LastUpdated = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO action_groups (id, token, refresh_token, auth_url, device_url, terminal_uuid, last_updated)
		VALUES (:id, :token, :refresh_token, :auth_url, :device_url, :terminal_uuid, :last_updated)
		ON CONFLICT (id) DO UPDATE SET
			token = EXCLUDED.token,
			refresh_token = EXCLUDED.refresh_token,
			auth_url = EXCLUDED.auth_url,
			device_url = EXCLUDED.device_url,
			terminal_uuid = EXCLUDED.terminal_uuid,
			last_updated = EXCLUDED.last_updated`, g)
	if err != nil {
		return fmt.Errorf("failed to save action group: %w", err)
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, name string) (string, bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM settings WHERE name = $1`, strings.ToLower(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get setting: %w", err)
	}
	return v, true, nil
}

func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, strings.ToLower(name), value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
