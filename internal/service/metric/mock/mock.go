// Package mock serves a fake metrics API with random walk series, handy to
// run the catalog without a real backend.
package mock

import (
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/catalogmf/catalog/internal/model"
)

const (
	defPoints = 22
	maxPoints = 1000
)

// seriesDef describes one generated series.
type seriesDef struct {
	id    string
	label string
	base  float64
	step  float64
}

var defaultSeries = []seriesDef{
	{id: "traffic", label: "Tráfico", base: 120, step: 18},
	{id: "conversion", label: "Conversion", base: 3.2, step: 0.4},
	{id: "tickets", label: "Tickets", base: 14, step: 3},
}

// Handler generates metrics payloads.
type Handler struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	now  func() time.Time
	step time.Duration
}

// NewHandler returns a new mock metrics API handler. A zero seed uses the
// current time.
func NewHandler(seed int64) *Handler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Handler{
		rnd:  rand.New(rand.NewSource(seed)),
		now:  time.Now,
		step: 6 * time.Second,
	}
}

// ServeHTTP satisfies http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	points := defPoints
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "points must be a positive integer", http.StatusBadRequest)
			return
		}
		points = n
	}
	if points > maxPoints {
		points = maxPoints
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(h.Payload(points))
}

// Payload generates a new payload with the number of points per series.
func (h *Handler) Payload(points int) model.MetricsPayload {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	payload := model.MetricsPayload{
		RefreshedAt: now.UnixMilli(),
		Series:      make([]model.MetricSeries, 0, len(defaultSeries)),
	}

	for _, def := range defaultSeries {
		s := model.MetricSeries{
			ID:     def.id,
			Label:  def.label,
			Points: make([]model.MetricPoint, points),
		}
		v := def.base
		for i := 0; i < points; i++ {
			ts := now.Add(-time.Duration(points-1-i) * h.step)
			v = math.Max(0, v+(h.rnd.Float64()*2-1)*def.step)
			s.Points[i] = model.MetricPoint{T: ts.UnixMilli(), Value: math.Round(v*10) / 10}
		}
		payload.Series = append(payload.Series, s)
	}

	return payload
}
