// Package slot aligns instants to the half-hour price slots used by tariffs
// and computes the local-time spans the evaluator scans.
package slot

import (
	"fmt"
	"time"

	"github.com/kilianp07/energyiot/core/model"
)

// Duration is the length of one price slot.
const Duration = 30 * time.Minute

// Resolve maps now to the slot boundary used to look up the current price.
// Minutes 45 and above round up to the next hour, 15 and below round down to
// the hour, anything in between resolves to half past. The result is UTC.
func Resolve(now time.Time) time.Time {
	now = now.UTC()
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	switch m := now.Minute(); {
	case m >= 45:
		return hour.Add(time.Hour)
	case m <= 15:
		return hour
	default:
		return hour.Add(Duration)
	}
}

// Floor truncates t to the start of the slot containing it.
func Floor(t time.Time) time.Time {
	return t.UTC().Truncate(Duration)
}

// Calendar evaluates daily spans in the tariff's local time zone.
type Calendar struct {
	Location *time.Location
}

// NewCalendar loads the named IANA zone. An empty name means UTC.
func NewCalendar(zone string) (Calendar, error) {
	if zone == "" {
		return Calendar{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return Calendar{Location: loc}, nil
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Zone returns the calendar location, UTC when unset.
func (c Calendar) Zone() *time.Location { return c.loc() }

func (c Calendar) at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, c.loc()).UTC()
}

// Day returns local midnight of the day containing now and the next local
// midnight, both in UTC. The span holds 46, 48 or 50 slots.
func (c Calendar) Day(now time.Time) (time.Time, time.Time) {
	local := now.In(c.loc())
	start := c.at(local, 0, 0)
	end := c.at(local.AddDate(0, 0, 1), 0, 0)
	return start, end
}

// TariffPeriod returns the day-ahead publication window: local 23:00 of the
// day containing now until local 23:00 of the following day.
func (c Calendar) TariffPeriod(now time.Time) (time.Time, time.Time) {
	local := now.In(c.loc())
	return c.at(local, 23, 0), c.at(local.AddDate(0, 0, 1), 23, 0)
}

// Interval returns the occurrence of the daily [min, max) interval that
// contains now, or the one that most recently started before now. When
// min is after max the interval crosses midnight.
func (c Calendar) Interval(now time.Time, min, max model.TimeOfDay) (time.Time, time.Time) {
	local := now.In(c.loc())
	start := c.at(local, min.Hour, min.Minute)
	if start.After(now) {
		start = c.at(local.AddDate(0, 0, -1), min.Hour, min.Minute)
	}
	startLocal := start.In(c.loc())
	endDay := startLocal
	if max.Minutes() <= min.Minutes() {
		endDay = startLocal.AddDate(0, 0, 1)
	}
	return start, c.at(endDay, max.Hour, max.Minute)
}

// SlotCount returns the number of whole slots between from and to.
func SlotCount(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / Duration)
}
