package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/store"
)

func (s *Store) GetPriceAt(ctx context.Context, slot time.Time) (*model.PricePoint, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var p model.PricePoint
	err := s.db.GetContext(ctx, &p, `SELECT slot_start, value FROM prices WHERE slot_start = $1`, slot.UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	p.SlotStart = p.SlotStart.UTC()
	return &p, nil
}

func (s *Store) GetPricesInRange(ctx context.Context, from, to time.Time) ([]model.PricePoint, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var out []model.PricePoint
	err := s.db.SelectContext(ctx, &out,
		`SELECT slot_start, value FROM prices WHERE slot_start >= $1 AND slot_start < $2 ORDER BY slot_start`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	for i := range out {
		out[i].SlotStart = out[i].SlotStart.UTC()
	}
	return out, nil
}

// SavePrices inserts the batch in one transaction. Stored slots are kept.
func (s *Store) SavePrices(ctx context.Context, prices []model.PricePoint) error {
	if len(prices) == 0 {
		return nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, p := range prices {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prices (slot_start, value) VALUES ($1, $2) ON CONFLICT (slot_start) DO NOTHING`,
			p.SlotStart.UTC(), p.Value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert price %s: %w", p.SlotStart.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}
	return nil
}

func (s *Store) SaveLowestSection(ctx context.Context, rec model.LowestSectionRecord) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lowest_sections (reference_slot_start, average_value, interval_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (reference_slot_start) DO UPDATE SET
			average_value = EXCLUDED.average_value,
			interval_count = EXCLUDED.interval_count`,
		rec.ReferenceSlotStart.UTC(), rec.Average, rec.IntervalCount)
	if err != nil {
		return fmt.Errorf("failed to save lowest section: %w", err)
	}
	return nil
}

func (s *Store) GetLowestSectionForPeriod(ctx context.Context, days int, asOf time.Time) (*model.LowestSectionRecord, error) {
	from, to := store.MultiDayWindow(days, asOf)
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var rec model.LowestSectionRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT reference_slot_start, average_value, interval_count
		FROM lowest_sections
		WHERE reference_slot_start >= $1 AND reference_slot_start < $2
		ORDER BY average_value, reference_slot_start
		LIMIT 1`, from.UTC(), to.UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lowest section: %w", err)
	}
	rec.ReferenceSlotStart = rec.ReferenceSlotStart.UTC()
	return &rec, nil
}
