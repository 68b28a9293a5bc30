package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is the unit price, tax included, of one half-hour slot.
type PricePoint struct {
	SlotStart time.Time       `json:"slot_start" db:"slot_start"`
	Value     decimal.Decimal `json:"value" db:"value"`
}

// LowestSectionRecord stores the cheapest run of IntervalCount slots found by
// an hourly cycle for one reference period.
type LowestSectionRecord struct {
	ReferenceSlotStart time.Time       `json:"reference_slot_start" db:"reference_slot_start"`
	Average            decimal.Decimal `json:"average_value" db:"average_value"`
	IntervalCount      int             `json:"interval_count" db:"interval_count"`
}

// Values extracts the price values in list order.
func Values(prices []PricePoint) []decimal.Decimal {
	out := make([]decimal.Decimal, len(prices))
	for i, p := range prices {
		out[i] = p.Value
	}
	return out
}

// Mean returns the arithmetic mean of the price values, zero when empty.
func Mean(prices []PricePoint) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p.Value)
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices))))
}
