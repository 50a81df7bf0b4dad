package model

// MetricPoint represents a measured value in time. T is a unix timestamp
// as sent by the metrics API.
type MetricPoint struct {
	T     int64   `json:"t"`
	Value float64 `json:"value"`
}

// MetricSeries is a group of points identified by an ID and a label.
// Points are ordered chronologically, renderers space them by index.
type MetricSeries struct {
	ID     string        `json:"id"`
	Label  string        `json:"label"`
	Points []MetricPoint `json:"points"`
}

// LastValue returns the value of the newest point of the series.
func (m MetricSeries) LastValue() (float64, bool) {
	if len(m.Points) == 0 {
		return 0, false
	}
	return m.Points[len(m.Points)-1].Value, true
}

// MetricsPayload is the result of one metrics API call. Every poll
// produces a new payload, payloads are never merged.
type MetricsPayload struct {
	RefreshedAt int64          `json:"refreshedAt"`
	Series      []MetricSeries `json:"series"`
}
