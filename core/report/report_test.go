package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/infra/logger"
)

type captureNotifier struct {
	subjects []string
	err      error
}

func (c *captureNotifier) Send(_ context.Context, subject, _ string) error {
	c.subjects = append(c.subjects, subject)
	return c.err
}

func TestAggregatorEmptyHasNoReport(t *testing.T) {
	var a Aggregator
	_, _, ok := a.Report(nil)
	assert.False(t, ok)
	assert.True(t, a.Empty())
}

func TestAggregatorReport(t *testing.T) {
	var a Aggregator
	ts := time.Date(2024, 4, 1, 10, 30, 0, 0, time.UTC)
	a.Add(model.ActionFailure{TriggerName: "cheap", ItemID: "1", ItemName: "heater", Message: "device call status not OK", Detail: "status 503", Retries: 2, Timestamp: ts})
	a.Add(model.ActionFailure{TriggerName: "cheap", ItemID: "2", ItemName: "<boiler>", Message: "no matching device group", Timestamp: ts})
	a.AddError(errors.New("price repository: timeout"))
	a.AddError(nil)

	subject, body, ok := a.Report(time.UTC)
	require.True(t, ok)
	assert.Equal(t, "Energy IOT Failures: Action Failures:2 Errors:1", subject)
	assert.Contains(t, body, "Trigger : cheap")
	assert.Contains(t, body, "DateTime : 01/04/2024 10:30:00")
	assert.Contains(t, body, "Retries : 2")
	assert.Contains(t, body, "&lt;boiler&gt;")
	assert.Contains(t, body, "Cycle Error : price repository: timeout")
	assert.Less(t, strings.Index(body, "heater"), strings.Index(body, "boiler"))
	assert.Len(t, a.Failures(), 2)
	assert.Len(t, a.Errors(), 1)
}

func TestDeliverSwallowsErrors(t *testing.T) {
	n := &captureNotifier{err: errors.New("smtp down")}
	Deliver(context.Background(), n, logger.NopLogger{}, "s", "body")
	Deliver(context.Background(), n, logger.NopLogger{}, "s", "  ")
	assert.Equal(t, []string{"s"}, n.subjects)
}

func TestUpdateSubjectAndBody(t *testing.T) {
	var u Update
	u.Add("PriceList ", "table")
	u.Add("", "No price below value set: 0.01 p/kWh")
	u.Add("+ LowestSection ", "lowest")
	assert.Equal(t, "Energy Prices Update : PriceList + LowestSection ", u.Subject())
	assert.True(t, strings.HasPrefix(u.Body(), "New Prices Saved<br/>table<br/><hr>"))
	assert.Equal(t, 3, u.Len())
}
