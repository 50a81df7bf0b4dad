package widget

import (
	"strconv"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/view/render"
)

// Sparkline is the view of one series card.
type Sparkline struct {
	ID         string
	Label      string
	Color      string
	GradientID string
	Line       string
	Fill       string
	Width      int
	Height     int
	LastLabel  string
	// LastValue is the newest value with one decimal, empty when the series
	// has no points.
	LastValue string
}

// NewSparkline returns the view of a series.
func NewSparkline(series model.MetricSeries, lastLabel string) Sparkline {
	paths := render.Render(series)

	last := ""
	if v, ok := series.LastValue(); ok {
		last = strconv.FormatFloat(v, 'f', 1, 64)
	}

	return Sparkline{
		ID:         series.ID,
		Label:      series.Label,
		Color:      render.ColorHex(series.Label),
		GradientID: "fill-" + series.ID,
		Line:       paths.Line,
		Fill:       paths.Fill,
		Width:      render.DefaultWidth,
		Height:     render.DefaultHeight,
		LastLabel:  lastLabel,
		LastValue:  last,
	}
}

// NewSparklines returns the views of all the series keeping their order.
func NewSparklines(series []model.MetricSeries, lastLabel string) []Sparkline {
	sls := make([]Sparkline, 0, len(series))
	for _, s := range series {
		sls = append(sls, NewSparkline(s, lastLabel))
	}
	return sls
}
