package octopus

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/energyiot/core/model"
)

// ChartHTML renders prices as a standalone HTML line chart with slot start
// times shown in loc.
func ChartHTML(title string, prices []model.PricePoint, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price (p/kWh)"}),
	)

	xAxis := make([]string, 0, len(prices))
	yAxis := make([]opts.LineData, 0, len(prices))
	for _, p := range prices {
		xAxis = append(xAxis, p.SlotStart.In(loc).Format("02/01 15:04"))
		yAxis = append(yAxis, opts.LineData{Value: p.Value.InexactFloat64()})
	}
	line.SetXAxis(xAxis).AddSeries("Price", yAxis)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %v", err)
	}
	return buf.String(), nil
}
