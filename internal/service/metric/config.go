package metric

import "time"

// Defaults of the metrics client.
const (
	DefaultPoints      = 22
	DefaultMetricsPath = "/api/metrics"
	DefaultCacheSize   = 16
)

// ClientConfig configures the metrics API client.
type ClientConfig struct {
	// BaseURL is the metrics API address without path, e.g. http://localhost:5050.
	BaseURL string

	// MetricsPath is the path of the metrics endpoint.
	MetricsPath string

	// DefaultPoints is used when a fetch asks for zero or negative points.
	DefaultPoints int

	// Timeout is the optional per request timeout. Zero means the request
	// only ends by its context.
	Timeout time.Duration
}

// Defaults fills the unset values of the configuration.
func (c *ClientConfig) Defaults() {
	if c.MetricsPath == "" {
		c.MetricsPath = DefaultMetricsPath
	}
	if c.DefaultPoints <= 0 {
		c.DefaultPoints = DefaultPoints
	}
}

// DefaultClientConfig returns the default configuration pointing to base.
func DefaultClientConfig(base string) ClientConfig {
	cfg := ClientConfig{BaseURL: base}
	cfg.Defaults()
	return cfg
}
