package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/energyiot/core/model"
)

var prices = []model.PricePoint{
	{SlotStart: time.Date(2024, 7, 1, 22, 0, 0, 0, time.UTC), Value: decimal.RequireFromString("12.5")},
	{SlotStart: time.Date(2024, 7, 1, 22, 30, 0, 0, time.UTC), Value: decimal.RequireFromString("-1.05")},
}

func TestWriteCSV(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, prices, loc); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[1] != "2024-07-01T22:00:00Z,2024-07-01 23:00,12.5" {
		t.Fatalf("unexpected row %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",-1.05") {
		t.Fatalf("unexpected row %q", lines[2])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, prices); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out []model.PricePoint
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || !out[1].Value.Equal(prices[1].Value) {
		t.Fatalf("unexpected output %+v", out)
	}
}
