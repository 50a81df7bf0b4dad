package terminal_test

import (
	"testing"

	"github.com/mum4k/termdash/cell"
	"github.com/stretchr/testify/assert"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/view/terminal"
)

func series(values ...float64) model.MetricSeries {
	s := model.MetricSeries{ID: "s1", Label: "Tráfico"}
	for i, v := range values {
		s.Points = append(s.Points, model.MetricPoint{T: int64(i), Value: v})
	}
	return s
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name   string
		series model.MetricSeries
		exp    []int
	}{
		{
			name:   "An empty series should not have levels.",
			series: series(),
			exp:    []int{},
		},
		{
			name:   "Min and max should be on the bottom and the top.",
			series: series(5, 15),
			exp:    []int{1, 101},
		},
		{
			name:   "Intermediate values should be proportional.",
			series: series(0, 5, 10),
			exp:    []int{1, 51, 101},
		},
		{
			name:   "A flat series should be on the bottom.",
			series: series(7, 7, 7),
			exp:    []int{1, 1, 1},
		},
		{
			name:   "Negative values should be projected too.",
			series: series(-10, 0),
			exp:    []int{1, 101},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, terminal.Levels(test.series))
		})
	}
}

func TestColor(t *testing.T) {
	assert.Equal(t, cell.ColorNumber(81), terminal.Color("Tráfico"))
	assert.Equal(t, cell.ColorNumber(78), terminal.Color("unknown"))
	assert.Equal(t, terminal.Color("Tickets"), terminal.Color("Tickets"))
}
