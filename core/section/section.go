// Package section ranks contiguous runs of price slots by their mean value.
package section

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/energyiot/core/model"
)

// Window is one contiguous run of slots and its mean price.
type Window struct {
	StartIndex int
	SlotStart  time.Time
	Average    decimal.Decimal
}

// Averages sorts prices by slot start and returns the mean of every run of
// k consecutive slots, cheapest first. Ties keep the earliest start first.
//
// Start indexes range over [0, len-k): the run starting at len-k is never
// produced, so a list of n prices yields max(0, n-k) windows.
func Averages(prices []model.PricePoint, k int) []Window {
	if k <= 0 || len(prices) <= k {
		return nil
	}
	sorted := make([]model.PricePoint, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SlotStart.Before(sorted[j].SlotStart) })

	size := decimal.NewFromInt(int64(k))
	out := make([]Window, 0, len(sorted)-k)
	for i := 0; i < len(sorted)-k; i++ {
		sum := decimal.Zero
		for _, p := range sorted[i : i+k] {
			sum = sum.Add(p.Value)
		}
		out = append(out, Window{StartIndex: i, SlotStart: sorted[i].SlotStart, Average: sum.Div(size)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average.LessThan(out[j].Average) })
	return out
}

// Cheapest returns the lowest-average window of length k.
func Cheapest(prices []model.PricePoint, k int) (Window, bool) {
	w := Averages(prices, k)
	if len(w) == 0 {
		return Window{}, false
	}
	return w[0], true
}
