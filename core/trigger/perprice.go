package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/section"
)

// RunPerPrice evaluates the per-price triggers enabled for mode. Action
// failures are collected in the cycle aggregator; a repository error stops
// the pass and is returned.
func (c *Cycle) RunPerPrice(ctx context.Context, triggers []model.Trigger, mode string) error {
	for _, t := range triggers {
		if !t.Active || !t.HasMode(mode) {
			continue
		}
		if t.Cycle != model.CyclePerPrice || t.Type.IsHourly() {
			c.e.log.Warnf("trigger %s (%s) is not a per-price trigger, skipped", t.Name, t.Type)
			continue
		}
		if len(t.Actions) == 0 {
			c.decide(t, false, "no actions defined", 0)
			continue
		}
		fire, reason, err := c.evaluate(ctx, t)
		if err != nil {
			c.e.log.Errorf("trigger %s: %v", t.Name, err)
			return err
		}
		if !fire {
			c.decide(t, false, reason, 0)
			continue
		}
		failures := c.e.dispatcher.Dispatch(ctx, t)
		c.agg.Add(failures...)
		c.decide(t, true, reason, len(failures))
	}
	return nil
}

func (c *Cycle) evaluate(ctx context.Context, t model.Trigger) (bool, string, error) {
	switch t.Type {
	case model.PriceAbove, model.PriceBelow:
		return c.priceThreshold(ctx, t)
	case model.AverageAbove, model.AverageBelow:
		return c.priceAverage(ctx, t)
	case model.SectionLow:
		return c.sectionLow(ctx, t)
	case model.SectionLowMultiDay:
		return c.sectionLowMultiDay(ctx, t)
	}
	return false, fmt.Sprintf("unknown trigger type %q", t.Type), nil
}

func compare(typ model.TriggerType, price, ref decimal.Decimal) bool {
	switch typ {
	case model.PriceAbove, model.AverageAbove:
		return price.GreaterThan(ref)
	case model.PriceBelow, model.AverageBelow:
		return price.LessThan(ref)
	}
	return false
}

func (c *Cycle) priceThreshold(ctx context.Context, t model.Trigger) (bool, string, error) {
	p, err := c.currentPrice(ctx)
	if err != nil {
		return false, "", err
	}
	if p == nil {
		c.e.log.Errorf("trigger %s: no price for %s", t.Name, c.slot.Format(time.RFC3339))
		return false, "no price data", nil
	}
	v := t.Threshold()
	return compare(t.Type, p.Value, v), fmt.Sprintf("price %s vs value %s", p.Value, v), nil
}

func (c *Cycle) priceAverage(ctx context.Context, t model.Trigger) (bool, string, error) {
	period, err := c.periodPrices(ctx, t)
	if err != nil {
		return false, "", err
	}
	avg := model.Mean(period)
	p, err := c.currentPrice(ctx)
	if err != nil {
		return false, "", err
	}
	if p == nil {
		c.e.log.Errorf("trigger %s: no price for %s", t.Name, c.slot.Format(time.RFC3339))
		return false, "no price data", nil
	}
	return compare(t.Type, p.Value, avg), fmt.Sprintf("price %s vs average %s", p.Value, avg.StringFixed(2)), nil
}

func (c *Cycle) sectionLow(ctx context.Context, t model.Trigger) (bool, string, error) {
	period, err := c.periodPrices(ctx, t)
	if err != nil {
		return false, "", err
	}
	if len(period) == 0 {
		c.e.log.Errorf("trigger %s: no prices for period", t.Name)
		return false, "no price data", nil
	}
	k := t.IntervalCount()
	w, ok := section.Cheapest(period, k)
	if !ok {
		return false, fmt.Sprintf("%d prices too few for a %d slot section", len(period), k), nil
	}
	reason := fmt.Sprintf("cheapest section starts %s avg %s", w.SlotStart.Format(time.RFC3339), w.Average.StringFixed(2))
	return c.slot.Equal(w.SlotStart), reason, nil
}

func (c *Cycle) sectionLowMultiDay(ctx context.Context, t model.Trigger) (bool, string, error) {
	days := t.IntervalCount()
	if days < 1 {
		days = 1
	}
	rec, err := c.e.lowest.GetLowestSectionForPeriod(ctx, days, c.now)
	if err != nil {
		return false, "", fmt.Errorf("%w: lowest section: %v", ErrRepository, err)
	}
	if rec == nil {
		return false, fmt.Sprintf("no lowest section recorded in %d days", days), nil
	}
	start := rec.ReferenceSlotStart
	fire := !c.now.Before(start) && c.now.Before(start.Add(MultiDayFireWindow))
	return fire, fmt.Sprintf("lowest %d day section starts %s avg %s", days, start.Format(time.RFC3339), rec.Average.StringFixed(2)), nil
}
