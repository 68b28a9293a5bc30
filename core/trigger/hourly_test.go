package trigger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/report"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/infra/logger"
	"github.com/kilianp07/energyiot/infra/memory"
)

type brokenLowest struct{ *memory.Store }

func (brokenLowest) SaveLowestSection(context.Context, model.LowestSectionRecord) error {
	return errors.New("write refused")
}

func hourlyTrigger(name string, typ model.TriggerType, order int, value *decimal.Decimal) model.Trigger {
	return model.Trigger{ID: name, Name: name, Cycle: model.CycleHourly, Type: typ, Order: order, Active: true, Value: value}
}

func tomorrow(vals []float64) []model.PricePoint {
	out := make([]model.PricePoint, len(vals))
	for i, v := range vals {
		out[i] = model.PricePoint{SlotStart: dayStart.Add(time.Duration(i) * slot.Duration), Value: decimal.NewFromFloat(v)}
	}
	return out
}

func TestHourlyPricesBelowScenario(t *testing.T) {
	vals := flat(48, 14)
	vals[7] = 0
	s := memory.New()
	cyc := newEvaluator(s, &recordingDispatcher{}).NewCycle("h", dayStart, nil)
	upd := cyc.RunHourly(context.Background(), []model.Trigger{hourlyTrigger("below", model.HourlyNotifyPricesBelowValue, 1, dec(0.01))}, tomorrow(vals))

	assert.Equal(t, "Energy Prices Update : + PricesBelow ", upd.Subject())
	assert.Equal(t, 1, strings.Count(upd.Body(), "Price: "))
	assert.Contains(t, upd.Body(), "Time: 03/06/2024 03:30")
}

func TestHourlyPricesBelowNoMatch(t *testing.T) {
	cyc := newEvaluator(memory.New(), &recordingDispatcher{}).NewCycle("h", dayStart, nil)
	upd := cyc.RunHourly(context.Background(), []model.Trigger{hourlyTrigger("below", model.HourlyNotifyPricesBelowValue, 1, dec(0.01))}, tomorrow(flat(48, 3)))
	assert.Equal(t, "Energy Prices Update : ", upd.Subject())
	assert.Contains(t, upd.Body(), "No price below value set: 0.01 p/kWh")
}

func TestHourlyOrderAndFragments(t *testing.T) {
	vals := flat(48, 10)
	vals[40] = 30
	s := memory.New()
	d := &recordingDispatcher{}
	e := newEvaluator(s, d).WithBands([]PriceBand{{From: decimal.Zero, To: decimal.NewFromInt(15), Colour: "#00ff00"}})
	cyc := e.NewCycle("h", dayStart, nil)
	trigs := []model.Trigger{
		hourlyTrigger("summary", model.HourlySummary, 3, nil),
		hourlyTrigger("list", model.HourlyNotifyPricesList, 1, nil),
		hourlyTrigger("lowest", model.HourlyNotifyLowestSection, 2, dec(4)),
	}
	upd := cyc.RunHourly(context.Background(), trigs, tomorrow(vals))

	assert.Equal(t, "Energy Prices Update : PriceList + LowestSection + Summary ", upd.Subject())
	body := upd.Body()
	assert.Contains(t, body, "#00ff00")
	assert.Contains(t, body, "Max : 30.00 p/kWh")
	assert.Less(t, strings.Index(body, "Tomorrow's average"), strings.Index(body, "Lowest price section"))
	assert.Empty(t, d.fired, "hourly triggers never dispatch")

	rec, err := s.GetLowestSectionForPeriod(context.Background(), 1, dayStart)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.ReferenceSlotStart.Equal(dayStart))
	assert.Equal(t, 4, rec.IntervalCount)
	assert.Len(t, cyc.Decisions(), 3)
}

func TestHourlyLowestSectionSaveFailureCollected(t *testing.T) {
	s := memory.New()
	agg := &report.Aggregator{}
	e := NewEvaluator(s, brokenLowest{s}, &recordingDispatcher{}, slot.Calendar{}, logger.NopLogger{})
	upd := e.NewCycle("h", dayStart, agg).RunHourly(context.Background(),
		[]model.Trigger{hourlyTrigger("lowest", model.HourlyNotifyLowestSection, 1, dec(6))}, tomorrow(flat(48, 9)))
	require.Len(t, agg.Errors(), 1)
	assert.ErrorIs(t, agg.Errors()[0], ErrRepository)
	assert.Equal(t, 1, upd.Len())
}
