// Package octopus fetches half-hourly unit rates from the Octopus Energy
// tariff API.
package octopus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/infra/logger"
)

// Config locates the tariff to read.
type Config struct {
	BaseURL string        `json:"base_url"`
	Product string        `json:"product"`
	Tariff  string        `json:"tariff"`
	Timeout time.Duration `json:"timeout"`
	// MaxPages bounds the pagination loop.
	MaxPages int `json:"max_pages"`
}

// SetDefaults applies the public API endpoint and a 10s timeout.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.octopus.energy"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Product == "" || c.Tariff == "" {
		return errors.New("octopus: product and tariff are required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("octopus: base url: %w", err)
	}
	return nil
}

// Enabled reports whether a tariff is configured.
func (c Config) Enabled() bool { return c.Product != "" && c.Tariff != "" }

type unitRate struct {
	ValidFrom   time.Time       `json:"valid_from"`
	ValidTo     time.Time       `json:"valid_to"`
	ValueExcVat decimal.Decimal `json:"value_exc_vat"`
	ValueIncVat decimal.Decimal `json:"value_inc_vat"`
}

type unitRates struct {
	Count    int        `json:"count"`
	Next     string     `json:"next"`
	Previous string     `json:"previous"`
	Results  []unitRate `json:"results"`
}

// Client reads standard unit rates.
type Client struct {
	cfg  Config
	http *http.Client
	log  logger.Logger
}

// New returns a client. A nil http client uses one with cfg.Timeout.
func New(cfg Config, hc *http.Client) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc, log: logger.New("octopus")}, nil
}

// RatesURL builds the unit-rates request for [from, to).
func (c *Client) RatesURL(from, to time.Time) string {
	q := url.Values{}
	q.Set("period_from", from.UTC().Format("2006-01-02T15:04:05Z"))
	q.Set("period_to", to.UTC().Format("2006-01-02T15:04:05Z"))
	return fmt.Sprintf("%s/v1/products/%s/electricity-tariffs/%s/standard-unit-rates/?%s",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Product), url.PathEscape(c.cfg.Tariff), q.Encode())
}

// FetchPrices returns the VAT-inclusive rate of every slot in [from, to),
// ordered by slot start. Rates spanning several slots are expanded.
func (c *Client) FetchPrices(ctx context.Context, from, to time.Time) ([]model.PricePoint, error) {
	next := c.RatesURL(from, to)
	var rates []unitRate
	for page := 0; next != "" && page < c.cfg.MaxPages; page++ {
		res, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		rates = append(rates, res.Results...)
		next = res.Next
	}
	c.log.Debugf("fetched %d unit rates for %s", len(rates), from.Format(time.RFC3339))
	return expand(rates, from, to), nil
}

func (c *Client) fetchPage(ctx context.Context, u string) (*unitRates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	var out unitRates
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func expand(rates []unitRate, from, to time.Time) []model.PricePoint {
	seen := make(map[time.Time]bool)
	var out []model.PricePoint
	for _, r := range rates {
		end := r.ValidTo
		if end.IsZero() || end.After(to) {
			end = to
		}
		for s := slot.Floor(r.ValidFrom.UTC()); s.Before(end); s = s.Add(slot.Duration) {
			if s.Before(from) || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, model.PricePoint{SlotStart: s, Value: r.ValueIncVat})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out
}
