package configuration

import (
	"net"
	"net/url"
	"strings"

	"github.com/catalogmf/catalog/internal/service/metric"
)

// Metrics API address defaults.
const (
	FallbackAPIPort = "5050"
	FallbackAPIBase = "http://localhost:" + FallbackAPIPort
)

// ResolveAPIBase returns the metrics API base address. The explicit override
// wins, otherwise the host of the public page URL is used on the fallback
// port, and last the localhost fallback.
func ResolveAPIBase(override, publicURL string) string {
	if override = strings.TrimSpace(override); override != "" {
		return strings.TrimRight(override, "/")
	}

	if publicURL != "" {
		u, err := url.Parse(publicURL)
		if err == nil && u.Hostname() != "" {
			scheme := u.Scheme
			if scheme == "" {
				scheme = "http"
			}
			return scheme + "://" + net.JoinHostPort(u.Hostname(), FallbackAPIPort)
		}
	}

	return FallbackAPIBase
}

// ResolveMetricsPath returns the metrics endpoint path.
func ResolveMetricsPath(override string) string {
	override = strings.TrimSpace(override)
	if override == "" {
		return metric.DefaultMetricsPath
	}
	if !strings.HasPrefix(override, "/") {
		override = "/" + override
	}
	return override
}
