package metric

import (
	"context"

	"github.com/catalogmf/catalog/internal/model"
)

// Fetcher knows how to fetch the metrics payload from the metrics API.
type Fetcher interface {
	// FetchMetrics fetches all the series with the requested number of points
	// per series. The fetch is cancelled when the context is done.
	FetchMetrics(ctx context.Context, points int) (*model.MetricsPayload, error)
}

// FetcherFunc is a helper to use functions as Fetchers.
type FetcherFunc func(ctx context.Context, points int) (*model.MetricsPayload, error)

// FetchMetrics satisfies Fetcher interface.
func (f FetcherFunc) FetchMetrics(ctx context.Context, points int) (*model.MetricsPayload, error) {
	return f(ctx, points)
}
