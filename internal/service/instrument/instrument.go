package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCanceled  = "canceled"
	OutcomeDiscarded = "discarded"
	OutcomeCached    = "cached"
)

// Recorder knows how to record the catalog metrics.
type Recorder interface {
	// ObserveFetch records a finished metrics fetch of the poller.
	ObserveFetch(outcome string, duration time.Duration)
	// ObserveNotify records a host notification.
	ObserveNotify(success bool)
}

// Dummy recorder doesn't record anything.
var Dummy Recorder = dummy{}

type dummy struct{}

func (dummy) ObserveFetch(string, time.Duration) {}
func (dummy) ObserveNotify(bool)                 {}

const namespace = "catalog"

type prom struct {
	fetchDuration *prometheus.HistogramVec
	notifications *prometheus.CounterVec
}

// NewPrometheus returns a Recorder that registers its metrics on reg.
func NewPrometheus(reg prometheus.Registerer) Recorder {
	p := &prom{
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "fetch_duration_seconds",
			Help:      "The duration of the metrics API fetches by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "notifications_total",
			Help:      "The number of notifications sent to the host shell.",
		}, []string{"success"}),
	}

	reg.MustRegister(p.fetchDuration, p.notifications)

	return p
}

func (p *prom) ObserveFetch(outcome string, duration time.Duration) {
	p.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *prom) ObserveNotify(success bool) {
	v := "false"
	if success {
		v = "true"
	}
	p.notifications.WithLabelValues(v).Inc()
}
