package services

import (
	"fmt"
	"os"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/jhilgenberg/go-e-report/models"
)

const (
	chartWidth        = 1200
	chartHeight       = 600
	chartTickCount    = 5
	// left/right padding plus the y axis labels
	chartPlotInset    = 140
	// room below the axis for dd.mm.yyyy labels rotated by 45 degrees
	chartLabelPadding = 70
)

var (
	gridLineColor = drawing.ColorFromHex("dcdcdc")
	barColor      = drawing.ColorFromHex("34495e")
)

// renderUsageChart writes the daily energy bar chart to a new PNG file in dir
// and returns its path. The caller owns the file. usages must not be empty.
func renderUsageChart(usages []models.DailyUsage, labels ReportTranslations, dir string) (string, error) {
	if len(usages) == 0 {
		return "", fmt.Errorf("no usage to chart")
	}
	graph := usageChart(usages, labels)

	f, err := os.CreateTemp(dir, "goe_chart_*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	path := f.Name()

	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	return path, nil
}

func usageChart(usages []models.DailyUsage, labels ReportTranslations) chart.BarChart {
	bars := make([]chart.Value, 0, len(usages))
	peak := 0.0
	for _, u := range usages {
		v := u.EnergyKWh.InexactFloat64()
		if v > peak {
			peak = v
		}
		bars = append(bars, chart.Value{
			Value: v,
			Label: u.Date.Format(models.DisplayDateLayout),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor, StrokeWidth: 1},
		})
	}

	top := peak * 1.1
	if top <= 0 {
		top = 1
	}
	ticks := make([]chart.Tick, 0, chartTickCount+1)
	for i := 0; i <= chartTickCount; i++ {
		v := top * float64(i) / chartTickCount
		ticks = append(ticks, chart.Tick{Value: v, Label: fmt.Sprintf("%.1f", v)})
	}

	slot := (chartWidth - chartPlotInset) / len(bars)
	barWidth := slot * 7 / 10
	if barWidth < 1 {
		barWidth = 1
	}
	barSpacing := slot - barWidth
	if barSpacing < 1 {
		barSpacing = 1
	}

	return chart.BarChart{
		Title:      labels.ChartTitle,
		TitleStyle: chart.Style{FontSize: 14},
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: chartLabelPadding},
		},
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis: chart.Style{
			FontSize:            9,
			TextRotationDegrees: 45.0,
		},
		YAxis: chart.YAxis{
			Name:  labels.ChartAxisKWh,
			Style: chart.Style{FontSize: 9},
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			Ticks: ticks,
		},
		Bars:     bars,
		Elements: []chart.Renderable{gridLines(ticks, top)},
	}
}

// gridLines draws light horizontal lines at every y tick.
func gridLines(ticks []chart.Tick, top float64) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, _ chart.Style) {
		r.SetStrokeColor(gridLineColor)
		r.SetStrokeWidth(1)
		for _, tick := range ticks[1:] {
			y := canvasBox.Bottom - int(tick.Value/top*float64(canvasBox.Height()))
			r.MoveTo(canvasBox.Left, y)
			r.LineTo(canvasBox.Right, y)
			r.Stroke()
		}
	}
}
