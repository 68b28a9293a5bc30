package cycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/events"
	"github.com/kilianp07/energyiot/core/metrics"
	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/core/trigger"
	"github.com/kilianp07/energyiot/infra/logger"
	"github.com/kilianp07/energyiot/infra/memory"
	"github.com/kilianp07/energyiot/internal/eventbus"
)

type mail struct{ subject, body string }

type outbox struct{ sent []mail }

func (o *outbox) Send(_ context.Context, subject, body string) error {
	o.sent = append(o.sent, mail{subject, body})
	return nil
}

type statusGateway struct {
	status int
	calls  int
}

func (g *statusGateway) Group() string { return "Kasa" }

func (g *statusGateway) SetRelayState(context.Context, model.ActionGroup, string, int) action.Result {
	g.calls++
	return action.Result{StatusCode: g.status}
}

type staticSource struct {
	prices []model.PricePoint
	err    error
	calls  int
}

func (s *staticSource) FetchPrices(_ context.Context, from, to time.Time) ([]model.PricePoint, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []model.PricePoint
	for _, p := range s.prices {
		if !p.SlotStart.Before(from) && p.SlotStart.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

type tokenRefresher struct {
	token string
	err   error
}

func (t tokenRefresher) RefreshToken(context.Context, model.ActionGroup) (string, error) {
	return t.token, t.err
}

var now = time.Date(2024, 6, 3, 10, 2, 0, 0, time.UTC)

func price(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func setup(t *testing.T, status int) (*memory.Store, *Runner, *outbox, *statusGateway) {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveActionGroup(ctx, model.ActionGroup{ID: "Kasa", Token: "t"}))
	require.NoError(t, st.SavePrices(ctx, []model.PricePoint{{SlotStart: slot.Resolve(now), Value: decimal.NewFromInt(30)}}))
	require.NoError(t, st.SaveTrigger(ctx, model.Trigger{
		ID: "t1", Name: "expensive", Cycle: model.CyclePerPrice, Type: model.PriceAbove, Active: true, Value: price(25),
		Modes:   []model.ModeEntry{{Mode: "Default", Active: true}},
		Actions: []model.Action{{ItemID: "1", ItemName: "heater", GroupID: "Kasa", DeviceID: "d1", TargetState: 0}},
	}))
	gw := &statusGateway{status: status}
	log := logger.NopLogger{}
	cal := slot.Calendar{Location: time.UTC}
	d := action.NewDispatcher(st, []action.Gateway{gw}, action.RetryConfig{Count: 1}, log)
	ev := trigger.NewEvaluator(st, st, d, cal, log)
	out := &outbox{}
	r := NewRunner(st, ev, cal, log, WithNotifier(out), WithClock(func() time.Time { return now }))
	return st, r, out, gw
}

func TestPerPriceFiresWithoutReport(t *testing.T) {
	_, r, out, gw := setup(t, 200)
	sum := r.RunPerPrice(context.Background())
	assert.Equal(t, metrics.OutcomeCompleted, sum.Outcome)
	assert.Equal(t, "Default", sum.Mode)
	assert.Equal(t, 1, gw.calls)
	assert.Empty(t, out.sent, "no failures means no report")
	require.Len(t, sum.Decisions, 1)
	assert.True(t, sum.Decisions[0].Fired)
}

func TestPerPriceFailureReport(t *testing.T) {
	_, r, out, gw := setup(t, 500)
	sum := r.RunPerPrice(context.Background())
	assert.Equal(t, 2, gw.calls)
	require.Len(t, sum.Failures, 1)
	require.Len(t, out.sent, 1)
	assert.Equal(t, "Energy IOT Failures: Action Failures:1", out.sent[0].subject)
	assert.Contains(t, out.sent[0].body, "Retries : 1")
}

func TestPerPriceGatedByOverride(t *testing.T) {
	st, r, out, gw := setup(t, 200)
	require.NoError(t, st.SaveOverride(context.Background(), model.OverrideWindow{Start: now.Add(-time.Hour), End: now.Add(time.Hour), IntervalCount: 4}))
	sum := r.RunPerPrice(context.Background())
	assert.Equal(t, metrics.OutcomeGated, sum.Outcome)
	assert.Zero(t, gw.calls)
	assert.Empty(t, sum.Decisions)
	assert.Empty(t, out.sent)
}

func TestPerPriceUsesStoredMode(t *testing.T) {
	st, r, _, gw := setup(t, 200)
	require.NoError(t, st.SetSetting(context.Background(), "Mode", "Away"))
	sum := r.RunPerPrice(context.Background())
	assert.Equal(t, "Away", sum.Mode)
	assert.Zero(t, gw.calls)
}

func TestPerPricePublishesEvents(t *testing.T) {
	_, r, _, _ := setup(t, 200)
	cycles := eventbus.NewTyped[events.CycleEvent]()
	decisions := eventbus.NewTyped[events.TriggerEvent]()
	WithEventBuses(cycles, decisions)(r)
	cch := cycles.Subscribe()
	dch := decisions.Subscribe()

	sum := r.RunPerPrice(context.Background())
	select {
	case ev := <-dch:
		assert.Equal(t, sum.ID, ev.CycleID)
		assert.Equal(t, "fire", ev.Result)
	case <-time.After(time.Second):
		t.Fatal("no trigger event")
	}
	select {
	case ev := <-cch:
		assert.Equal(t, "per_price", ev.Kind)
		assert.Equal(t, 1, ev.Fired)
	case <-time.After(time.Second):
		t.Fatal("no cycle event")
	}
}

func TestPerPriceCycleEventCarriesEveryDecision(t *testing.T) {
	st, r, _, _ := setup(t, 200)
	for i := 0; i < 20; i++ {
		require.NoError(t, st.SaveTrigger(context.Background(), model.Trigger{
			ID: fmt.Sprintf("n%02d", i), Name: fmt.Sprintf("noop %d", i), Cycle: model.CyclePerPrice, Type: model.PriceBelow,
			Active: true, Value: price(1), Modes: []model.ModeEntry{{Mode: "Default", Active: true}},
		}))
	}
	cycles := eventbus.NewTyped[events.CycleEvent]()
	WithEventBuses(cycles, nil)(r)
	cch := cycles.Subscribe()

	sum := r.RunPerPrice(context.Background())
	require.Len(t, sum.Decisions, 21)
	select {
	case ev := <-cch:
		require.Len(t, ev.Decisions, 21)
		assert.Equal(t, 1, ev.Fired)
		for _, d := range ev.Decisions {
			assert.Equal(t, sum.ID, d.CycleID)
		}
	case <-time.After(time.Second):
		t.Fatal("no cycle event")
	}
}

func TestRefreshFailureInCycleEvent(t *testing.T) {
	_, r, _, _ := setup(t, 200)
	cycles := eventbus.NewTyped[events.CycleEvent]()
	WithEventBuses(cycles, nil)(r)
	cch := cycles.Subscribe()
	WithRefreshers(map[string]action.Refresher{"Kasa": tokenRefresher{err: errors.New("token expired")}})(r)

	sum := r.RunRefresh(context.Background())
	require.Error(t, sum.Err)
	select {
	case ev := <-cch:
		assert.Equal(t, metrics.OutcomeFailed, ev.Outcome)
		assert.Contains(t, ev.Error, "token expired")
	case <-time.After(time.Second):
		t.Fatal("no cycle event")
	}
}

func hourlySetup(t *testing.T) (*memory.Store, *Runner, *outbox, []model.PricePoint) {
	t.Helper()
	st, r, out, _ := setup(t, 200)
	require.NoError(t, st.SaveTrigger(context.Background(), model.Trigger{
		ID: "h1", Name: "zero", Cycle: model.CycleHourly, Type: model.HourlyNotifyPricesBelowValue, Active: true, Order: 1, Value: price(0.01),
	}))
	from, _ := slot.Calendar{Location: time.UTC}.TariffPeriod(now)
	prices := make([]model.PricePoint, 48)
	for i := range prices {
		prices[i] = model.PricePoint{SlotStart: from.Add(time.Duration(i) * slot.Duration), Value: decimal.NewFromInt(12)}
	}
	prices[5].Value = decimal.Zero
	return st, r, out, prices
}

func TestHourlyFetchesSavesAndReports(t *testing.T) {
	st, r, out, prices := hourlySetup(t)
	src := &staticSource{prices: prices}
	WithPriceSource(src)(r)

	sum := r.RunHourly(context.Background())
	assert.Equal(t, metrics.OutcomeCompleted, sum.Outcome)
	require.Len(t, out.sent, 1)
	assert.Equal(t, "Energy Prices Update : + PricesBelow ", out.sent[0].subject)
	assert.True(t, strings.HasPrefix(out.sent[0].body, "New Prices Saved"))

	stored, err := st.GetPriceAt(context.Background(), prices[47].SlotStart)
	require.NoError(t, err)
	require.NotNil(t, stored)

	sum = r.RunHourly(context.Background())
	assert.Equal(t, metrics.OutcomeSkipped, sum.Outcome)
	assert.Equal(t, 1, src.calls, "stored period must not be fetched again")
}

func TestHourlyWaitsForFullDay(t *testing.T) {
	_, r, out, prices := hourlySetup(t)
	WithPriceSource(&staticSource{prices: prices[:40]})(r)
	sum := r.RunHourly(context.Background())
	assert.Equal(t, metrics.OutcomeSkipped, sum.Outcome)
	assert.Empty(t, out.sent)
}

func TestHourlyFetchErrorReported(t *testing.T) {
	_, r, out, _ := hourlySetup(t)
	WithPriceSource(&staticSource{err: errors.New("503 from api")})(r)
	sum := r.RunHourly(context.Background())
	assert.Equal(t, metrics.OutcomeFailed, sum.Outcome)
	require.Len(t, out.sent, 1)
	assert.Contains(t, out.sent[0].body, "503 from api")
}

func TestRefreshUpdatesTokens(t *testing.T) {
	st, r, out, _ := setup(t, 200)
	WithRefreshers(map[string]action.Refresher{
		"Kasa": tokenRefresher{token: "fresh"},
		"Tapo": tokenRefresher{token: "x"},
	})(r)
	sum := r.RunRefresh(context.Background())
	assert.Equal(t, metrics.OutcomeFailed, sum.Outcome)
	assert.ErrorIs(t, sum.Err, action.ErrNoGroup)
	g, err := st.GetActionGroup(context.Background(), "Kasa")
	require.NoError(t, err)
	assert.Equal(t, "fresh", g.Token)
	require.Len(t, out.sent, 1)
	assert.Equal(t, "Energy IOT Failure: RefreshToken", out.sent[0].subject)
}
