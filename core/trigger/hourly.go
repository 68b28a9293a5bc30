package trigger

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/report"
	"github.com/kilianp07/energyiot/core/section"
)

const displayTime = "02/01/2006 15:04"

// RunHourly evaluates the hourly triggers in ascending order against the
// freshly published prices and returns the price update report. Hourly
// triggers never dispatch actions. A failure to persist the lowest section
// is collected in the aggregator and evaluation continues.
func (c *Cycle) RunHourly(ctx context.Context, triggers []model.Trigger, prices []model.PricePoint) *report.Update {
	sorted := make([]model.Trigger, len(triggers))
	copy(sorted, triggers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	prices = sortedPrices(prices)
	upd := &report.Update{}
	for _, t := range sorted {
		if !t.Active {
			continue
		}
		switch t.Type {
		case model.HourlyNotifyPricesList:
			if len(prices) == 0 {
				c.decide(t, false, "no prices", 0)
				continue
			}
			upd.Add("PriceList ", c.pricesList(prices))
			c.decide(t, true, fmt.Sprintf("%d prices listed", len(prices)), 0)
		case model.HourlyNotifyPricesBelowValue:
			body, n := c.pricesBelow(t, prices)
			if n == 0 {
				upd.Add("", fmt.Sprintf("No price below value set: %s p/kWh", t.Threshold()))
				c.decide(t, false, "no price below value", 0)
				continue
			}
			upd.Add("+ PricesBelow ", body)
			c.decide(t, true, fmt.Sprintf("%d prices below %s", n, t.Threshold()), 0)
		case model.HourlyNotifyLowestSection:
			k := t.IntervalCount()
			w, ok := section.Cheapest(prices, k)
			if !ok {
				c.decide(t, false, fmt.Sprintf("%d prices too few for a %d slot section", len(prices), k), 0)
				continue
			}
			rec := model.LowestSectionRecord{ReferenceSlotStart: w.SlotStart, Average: w.Average, IntervalCount: k}
			if err := c.e.lowest.SaveLowestSection(ctx, rec); err != nil {
				c.e.log.Errorf("trigger %s: save lowest section: %v", t.Name, err)
				c.agg.AddError(fmt.Errorf("%w: save lowest section: %v", ErrRepository, err))
			}
			upd.Add("+ LowestSection ", c.lowestSection(k, w))
			c.decide(t, true, fmt.Sprintf("lowest section %s", w.SlotStart.Format(displayTime)), 0)
		case model.HourlySummary:
			if len(prices) == 0 {
				c.decide(t, false, "no prices", 0)
				continue
			}
			upd.Add("+ Summary ", summary(prices))
			c.decide(t, true, "summary", 0)
		default:
			c.e.log.Warnf("trigger %s (%s) is not an hourly trigger, skipped", t.Name, t.Type)
		}
	}
	return upd
}

func sortedPrices(prices []model.PricePoint) []model.PricePoint {
	out := make([]model.PricePoint, len(prices))
	copy(out, prices)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out
}

func (c *Cycle) colour(p model.PricePoint) string {
	for _, b := range c.e.bands {
		if !p.Value.LessThan(b.From) && !p.Value.GreaterThan(b.To) {
			return b.Colour
		}
	}
	return ""
}

const cellStyle = `style="padding: 5px 15px;"`

func (c *Cycle) pricesList(prices []model.PricePoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tomorrow's average rate is %s p / kWh.<br/><br/>", model.Mean(prices).StringFixed(2))
	fmt.Fprintf(&b, `<table style="border: 1px solid black; border-collapse: collapse;"><tr><th %s>Rate (p/kWh)</th><th %s>Time</th></tr>`, cellStyle, cellStyle)
	for _, p := range prices {
		fmt.Fprintf(&b, `<tr style="border: 1px solid black; background-color:%s"><td %s>%s</td><td %s>%s</td></tr>`,
			html.EscapeString(c.colour(p)), cellStyle, p.Value, cellStyle, p.SlotStart.In(c.e.cal.Zone()).Format(displayTime))
	}
	b.WriteString("</table><br/>")
	return b.String()
}

func (c *Cycle) pricesBelow(t model.Trigger, prices []model.PricePoint) (string, int) {
	v := t.Threshold()
	var b strings.Builder
	n := 0
	for _, p := range prices {
		if !p.Value.LessThan(v) {
			continue
		}
		if n == 0 {
			b.WriteString("Sub-Value/Zero Prices found! <br /><br />")
		}
		n++
		fmt.Fprintf(&b, "Time: %s<br />Price: %s<br /><br />", p.SlotStart.In(c.e.cal.Zone()).Format(displayTime), p.Value)
	}
	return b.String(), n
}

func (c *Cycle) lowestSection(k int, w section.Window) string {
	return fmt.Sprintf("Lowest price section of the day (interval: %d) :<br/>DateTime : %s <br/> Average Price : %s p/kWh",
		k, w.SlotStart.In(c.e.cal.Zone()).Format(displayTime), w.Average.StringFixed(2))
}

func summary(prices []model.PricePoint) string {
	vals := make([]float64, len(prices))
	for i, p := range prices {
		vals[i] = p.Value.InexactFloat64()
	}
	mean, std := stat.MeanStdDev(vals, nil)
	if len(vals) < 2 {
		std = 0
	}
	return fmt.Sprintf("Summary of %d prices:<br/>Min : %.2f p/kWh<br/>Max : %.2f p/kWh<br/>Mean : %.2f p/kWh<br/>Std Dev : %.2f",
		len(vals), floats.Min(vals), floats.Max(vals), mean, std)
}
