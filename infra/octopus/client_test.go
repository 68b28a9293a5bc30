package octopus

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyiot/core/model"
)

func ratesPage(from time.Time, n int, next string) string {
	var parts []string
	for i := n - 1; i >= 0; i-- {
		s := from.Add(time.Duration(i) * 30 * time.Minute)
		parts = append(parts, fmt.Sprintf(`{"value_exc_vat":%d.0,"value_inc_vat":%d.5,"valid_from":"%s","valid_to":"%s"}`,
			i, i, s.Format(time.RFC3339), s.Add(30*time.Minute).Format(time.RFC3339)))
	}
	nextJSON := "null"
	if next != "" {
		nextJSON = fmt.Sprintf("%q", next)
	}
	return fmt.Sprintf(`{"count":%d,"next":%s,"previous":null,"results":[%s]}`, n, nextJSON, strings.Join(parts, ","))
}

func TestFetchPrices(t *testing.T) {
	from := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/products/AGILE-24-04-03/electricity-tariffs/E-1R-AGILE-24-04-03-C/standard-unit-rates/", r.URL.Path)
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(ratesPage(from, 48, "")))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Product: "AGILE-24-04-03", Tariff: "E-1R-AGILE-24-04-03-C"}, srv.Client())
	require.NoError(t, err)
	prices, err := c.FetchPrices(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, prices, 48)
	assert.True(t, prices[0].SlotStart.Equal(from))
	assert.True(t, prices[47].SlotStart.Equal(to.Add(-30*time.Minute)))
	assert.True(t, prices[3].Value.Equal(decimal.RequireFromString("3.5")))
	assert.Contains(t, query, "period_from=2024-03-01T23%3A00%3A00Z")
	assert.Contains(t, query, "period_to=2024-03-02T23%3A00%3A00Z")
}

func TestFetchPricesFollowsPagination(t *testing.T) {
	from := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(ratesPage(from.Add(12*time.Hour), 24, "")))
			return
		}
		_, _ = w.Write([]byte(ratesPage(from, 24, srv.URL+r.URL.Path+"?page=2")))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Product: "P", Tariff: "T"}, srv.Client())
	require.NoError(t, err)
	prices, err := c.FetchPrices(context.Background(), from, from.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, prices, 48)
}

func TestFetchPricesExpandsLongRates(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"results":[{"value_inc_vat":24.5,"valid_from":"2024-03-01T00:00:00Z","valid_to":null}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Product: "FLEX", Tariff: "T"}, srv.Client())
	require.NoError(t, err)
	prices, err := c.FetchPrices(context.Background(), from, from.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, prices, 4)
	for _, p := range prices {
		assert.True(t, p.Value.Equal(decimal.RequireFromString("24.5")))
	}
}

func TestFetchPricesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Product: "P", Tariff: "T"}, srv.Client())
	require.NoError(t, err)
	_, err = c.FetchPrices(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.ErrorContains(t, err, "502")

	_, err = New(Config{}, nil)
	assert.Error(t, err)
}

func TestChartHTML(t *testing.T) {
	start := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	prices := []model.PricePoint{
		{SlotStart: start, Value: decimal.NewFromFloat(12.5)},
		{SlotStart: start.Add(30 * time.Minute), Value: decimal.NewFromFloat(-1.2)},
	}
	html, err := ChartHTML("Prices", prices, time.UTC)
	require.NoError(t, err)
	assert.Contains(t, html, "Prices")
	assert.Contains(t, html, "01/03 23:00")
}
