package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/metric"
)

// maxErrorBody limits how much of a failed response body is drained.
const maxErrorBody = 4 << 10

// Client fetches metrics from the metrics HTTP API.
type Client struct {
	cfg      metric.ClientConfig
	endpoint *url.URL
	cli      *http.Client
	stats    *clientStats
}

// clientStats tracks execution statistics.
type clientStats struct {
	mu              sync.RWMutex
	total           int64
	successful      int64
	failed          int64
	canceled        int64
	averageExecTime time.Duration
}

// NewClient returns a new metrics API client. When cli is nil the default
// HTTP client is used.
func NewClient(cfg metric.ClientConfig, cli *http.Client) (*Client, error) {
	cfg.Defaults()

	if cfg.BaseURL == "" {
		return nil, errors.New("metrics API base URL is required")
	}
	endpoint, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + cfg.MetricsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid metrics API URL %q", cfg.BaseURL+cfg.MetricsPath)
	}

	if cli == nil {
		cli = http.DefaultClient
	}

	return &Client{
		cfg:      cfg,
		endpoint: endpoint,
		cli:      cli,
		stats:    &clientStats{},
	}, nil
}

// URL returns the request URL for the number of points.
func (c *Client) URL(points int) string {
	if points <= 0 {
		points = c.cfg.DefaultPoints
	}
	u := *c.endpoint
	q := u.Query()
	q.Set("points", strconv.Itoa(points))
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchMetrics satisfies metric.Fetcher interface.
func (c *Client) FetchMetrics(ctx context.Context, points int) (*model.MetricsPayload, error) {
	start := time.Now()
	payload, err := c.fetch(ctx, points)
	c.record(time.Since(start), err)
	return payload, err
}

func (c *Client) fetch(ctx context.Context, points int) (*model.MetricsPayload, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequest(http.MethodGet, c.URL(points), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not create metrics request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, &metric.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, &metric.FetchError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
		}
	}

	payload := &model.MetricsPayload{}
	if err := json.NewDecoder(resp.Body).Decode(payload); err != nil {
		// A body cut by a cancellation is a network problem, not a bad payload.
		if ctx.Err() != nil {
			return nil, &metric.NetworkError{Err: ctx.Err()}
		}
		return nil, &metric.DecodeError{Err: err}
	}

	return payload, nil
}

// statusText returns the reason phrase of the response, e.g. "Not Found".
func statusText(resp *http.Response) string {
	// resp.Status is "404 Not Found".
	if i := strings.IndexByte(resp.Status, ' '); i >= 0 && i+1 < len(resp.Status) {
		return resp.Status[i+1:]
	}
	return http.StatusText(resp.StatusCode)
}

func (c *Client) record(d time.Duration, err error) {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()

	c.stats.total++
	switch {
	case err == nil:
		c.stats.successful++
	case metric.IsCanceled(err):
		c.stats.canceled++
	default:
		c.stats.failed++
	}

	// Moving average of the execution time.
	if c.stats.total > 1 {
		c.stats.averageExecTime = (c.stats.averageExecTime + d) / 2
	} else {
		c.stats.averageExecTime = d
	}
}

// Stats returns current client statistics.
func (c *Client) Stats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		TotalRequests:      c.stats.total,
		SuccessfulRequests: c.stats.successful,
		FailedRequests:     c.stats.failed,
		CanceledRequests:   c.stats.canceled,
		AverageExecTime:    c.stats.averageExecTime,
	}
}

// Stats contains performance statistics for the client.
type Stats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	CanceledRequests   int64
	AverageExecTime    time.Duration
}
