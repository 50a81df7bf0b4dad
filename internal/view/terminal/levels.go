package terminal

import (
	"math"

	"github.com/mum4k/termdash/cell"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/view/render"
)

// LevelMax is the height the series are projected to before being drawn as
// sparkline bars. The minimum value gets level 1 so it's still visible.
const LevelMax = 100

// Levels returns the sparkline bar heights of the series, same projection
// as the web sparkline.
func Levels(series model.MetricSeries) []int {
	points := render.Project(series, float64(len(series.Points)), LevelMax)
	levels := make([]int, 0, len(points))
	for _, p := range points {
		levels = append(levels, 1+int(math.Round(LevelMax-p.Y)))
	}
	return levels
}

// Color returns the 256 palette terminal color closest to the series color.
func Color(label string) cell.Color {
	c := render.Color(label)
	r, g, b := cube(c.R), cube(c.G), cube(c.B)
	// 6x6x6 color cube starts at 16.
	return cell.ColorNumber(16 + 36*r + 6*g + b)
}

func cube(v float64) int {
	i := int(math.Round(v * 5))
	if i < 0 {
		return 0
	}
	if i > 5 {
		return 5
	}
	return i
}
