// Package export writes price series in interchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"github.com/kilianp07/energyiot/core/model"
)

// WriteJSON writes prices to w as a JSON array.
func WriteJSON(w io.Writer, prices []model.PricePoint) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(prices)
}

// WriteCSV writes prices to w with a header row. Slot starts are written in
// UTC and in loc.
func WriteCSV(w io.Writer, prices []model.PricePoint, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"slot_start_utc", "slot_start_local", "price_p_kwh"}); err != nil {
		return err
	}
	for _, p := range prices {
		rec := []string{
			p.SlotStart.UTC().Format(time.RFC3339),
			p.SlotStart.In(loc).Format("2006-01-02 15:04"),
			p.Value.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
