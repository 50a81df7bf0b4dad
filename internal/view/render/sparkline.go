package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/catalogmf/catalog/internal/model"
)

// Default sparkline canvas size.
const (
	DefaultWidth  = 360
	DefaultHeight = 140
)

// Point is a projected point on the canvas. The canvas origin is the top
// left corner.
type Point struct {
	X float64
	Y float64
}

// Paths are the SVG path definitions of a sparkline.
type Paths struct {
	// Line is the open path that joins all the points.
	Line string
	// Fill is the line closed through the bottom corners, the area under
	// the curve.
	Fill string
}

// Render renders the series on the default canvas.
func Render(series model.MetricSeries) Paths {
	return RenderSize(series, DefaultWidth, DefaultHeight)
}

// RenderSize renders the series on a width x height canvas. Points are
// spaced by their index, the first one on x=0 and the last one on x=width.
// A series without points renders empty paths.
func RenderSize(series model.MetricSeries, width, height float64) Paths {
	points := Project(series, width, height)
	if len(points) == 0 {
		return Paths{}
	}

	var b strings.Builder
	for i, p := range points {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(strconv.FormatFloat(p.X, 'f', 1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Y, 'f', 1, 64))
	}
	line := b.String()

	w := formatSize(width)
	h := formatSize(height)
	fill := line + " L " + w + " " + h + " L 0 " + h + " Z"

	return Paths{Line: line, Fill: fill}
}

// Project maps the series values to canvas coordinates. The minimum value
// goes to the bottom (y=height) and the maximum to the top (y=0). When all
// the values are equal the range is 1 so the line is flat on the bottom.
func Project(series model.MetricSeries, width, height float64) []Point {
	n := len(series.Points)
	if n == 0 {
		return nil
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, p := range series.Points {
		min = math.Min(min, p.Value)
		max = math.Max(max, p.Value)
	}
	rng := max - min
	if rng == 0 {
		rng = 1
	}

	points := make([]Point, n)
	for i, p := range series.Points {
		x := width / 2
		if n > 1 {
			x = float64(i) / float64(n-1) * width
		}
		y := height - (p.Value-min)/rng*height
		points[i] = Point{X: x, Y: y}
	}

	return points
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
