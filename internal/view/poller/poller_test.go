package poller_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/service/metric"
	"github.com/catalogmf/catalog/internal/service/metric/httpapi"
	"github.com/catalogmf/catalog/internal/view/poller"
)

// call is one fetch received by the controlled fetcher.
type call struct {
	ctx    context.Context
	points int
	reply  chan result
}

type result struct {
	payload *model.MetricsPayload
	err     error
}

// controlledFetcher blocks every fetch until the test replies. It ignores
// the context on purpose so late results of cancelled fetches still arrive.
type controlledFetcher struct {
	calls chan call
}

func newControlledFetcher() *controlledFetcher {
	return &controlledFetcher{calls: make(chan call, 10)}
}

func (c *controlledFetcher) FetchMetrics(ctx context.Context, points int) (*model.MetricsPayload, error) {
	cl := call{ctx: ctx, points: points, reply: make(chan result, 1)}
	c.calls <- cl
	r := <-cl.reply
	return r.payload, r.err
}

func (c *controlledFetcher) next(t *testing.T) call {
	t.Helper()
	select {
	case cl := <-c.calls:
		return cl
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return call{}
	}
}

func payload(ts int64) *model.MetricsPayload {
	return &model.MetricsPayload{
		RefreshedAt: ts,
		Series: []model.MetricSeries{
			{ID: "s1", Label: "Tráfico", Points: []model.MetricPoint{{T: 0, Value: 5}, {T: 1, Value: 15}}},
		},
	}
}

// waitState waits until the poller state satisfies cond.
func waitState(t *testing.T, p *poller.Poller, cond func(poller.State) bool) poller.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := p.State(); cond(st) {
			return st
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state condition not met, last state: %+v", p.State())
	return poller.State{}
}

func startPoller(t *testing.T, cfg poller.Config, f metric.Fetcher) (*poller.Poller, context.CancelFunc, chan error) {
	t.Helper()
	p := poller.New(cfg, f, log.Dummy)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return p, cancel, done
}

func TestPollerInitialFetch(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	cl := f.next(t)
	assert.Equal(22, cl.points, "default points should be requested")

	st := p.State()
	assert.Equal(poller.PhaseLoading, st.Phase)
	assert.True(st.Loading, "the first fetch should show the loading indicator")

	cl.reply <- result{payload: payload(1000)}
	st = waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })
	assert.False(st.Loading)
	assert.NoError(st.Err)
	assert.Equal(int64(1000), st.Data.RefreshedAt)
}

func TestPollerRefreshDoesNotShowLoading(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	f.next(t).reply <- result{payload: payload(1)}
	waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })

	p.Refresh()
	cl := f.next(t)

	st := p.State()
	assert.False(st.Loading, "refreshes should not show the loading indicator")
	assert.True(st.Refreshing)
	assert.Equal(poller.PhaseReady, st.Phase)
	assert.Equal(int64(1), st.Data.RefreshedAt, "current data should stay while refreshing")

	cl.reply <- result{payload: payload(2)}
	st = waitState(t, p, func(s poller.State) bool { return s.Data.RefreshedAt == 2 })
	assert.False(st.Refreshing)
}

func TestPollerRefreshIsBoundToRun(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	f.next(t).reply <- result{payload: payload(1)}
	waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })

	p.Refresh()
	cl := f.next(t)
	assert.NoError(cl.ctx.Err(), "the refresh fetch should live as long as the poller run")

	cl.reply <- result{payload: payload(2)}
	st := waitState(t, p, func(s poller.State) bool { return s.Data.RefreshedAt == 2 })
	assert.False(st.Refreshing)
	assert.Equal(poller.PhaseReady, st.Phase)

	// Stopping the run cancels it.
	p.Refresh()
	cl = f.next(t)
	cancel()
	select {
	case <-cl.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("the refresh fetch should be cancelled with the run")
	}
	cl.reply <- result{err: &metric.NetworkError{Err: context.Canceled}}
}

func TestPollerRefreshBeforeRun(t *testing.T) {
	f := newControlledFetcher()
	p := poller.New(poller.Config{Interval: time.Hour}, f, log.Dummy)

	p.Refresh()
	select {
	case <-f.calls:
		t.Fatal("a poller that is not running should not fetch")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, poller.PhaseIdle, p.State().Phase)
}

func TestPollerCanceledRefreshClearsRefreshing(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	f.next(t).reply <- result{payload: payload(1)}
	waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })

	var refreshing int32
	p.Subscribe(func(s poller.State) {
		if !s.Refreshing {
			atomic.StoreInt32(&refreshing, 0)
		}
	})
	atomic.StoreInt32(&refreshing, 1)

	p.Refresh()
	f.next(t).reply <- result{err: &metric.NetworkError{Err: context.Canceled}}

	st := waitState(t, p, func(s poller.State) bool { return !s.Refreshing })
	assert.Equal(poller.PhaseReady, st.Phase)
	assert.NoError(st.Err, "cancellations should never be shown")
	assert.Equal(int64(1), st.Data.RefreshedAt)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&refreshing) == 0 }, 2*time.Second, time.Millisecond)
}

func TestPollerSupersededFetchIsDiscarded(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	first := f.next(t)
	p.Refresh()
	second := f.next(t)

	assert.Error(first.ctx.Err(), "a new fetch should cancel the previous one")
	assert.NoError(second.ctx.Err())

	// The newer fetch resolves first, then the late result of the old one arrives.
	second.reply <- result{payload: payload(2000)}
	waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })
	first.reply <- result{payload: payload(1000)}

	time.Sleep(20 * time.Millisecond)
	st := p.State()
	assert.Equal(int64(2000), st.Data.RefreshedAt, "old results should never overwrite newer state")
}

func TestPollerSupersededErrorIsDiscarded(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	first := f.next(t)
	p.Refresh()
	second := f.next(t)

	first.reply <- result{err: &metric.FetchError{StatusCode: 500, Status: "Internal Server Error"}}
	time.Sleep(20 * time.Millisecond)
	assert.NoError(p.State().Err, "the error of a superseded fetch should not be observable")

	second.reply <- result{err: &metric.FetchError{StatusCode: 503, Status: "Service Unavailable"}}
	st := waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseFailed })
	assert.Contains(st.ErrorMessage(), "503")
}

func TestPollerCanceledErrorsAreDropped(t *testing.T) {
	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	f.next(t).reply <- result{err: &metric.NetworkError{Err: context.Canceled}}
	time.Sleep(20 * time.Millisecond)

	st := p.State()
	assert.NoError(t, st.Err, "cancellations should never be shown")
	assert.Equal(t, poller.PhaseLoading, st.Phase)
}

func TestPollerFailureKeepsStaleData(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, f)
	defer func() { cancel(); <-done }()

	f.next(t).reply <- result{payload: payload(1000)}
	waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })

	p.Refresh()
	f.next(t).reply <- result{err: &metric.FetchError{StatusCode: 500, Status: "Internal Server Error"}}
	st := waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseFailed })

	assert.Contains(st.ErrorMessage(), "500")
	require.NotNil(t, st.Data, "previous data should not be discarded on failure")
	assert.Equal(int64(1000), st.Data.RefreshedAt)

	// Recovering clears the error.
	p.Refresh()
	f.next(t).reply <- result{payload: payload(3000)}
	st = waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })
	assert.NoError(st.Err)
	assert.Equal(int64(3000), st.Data.RefreshedAt)
}

func TestPollerHTTP500WithoutData(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := httpapi.NewClient(metric.ClientConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour}, c)
	defer func() { cancel(); <-done }()

	st := waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseFailed })
	assert.Contains(st.ErrorMessage(), "500")
	assert.Nil(st.Data)
	assert.False(st.Loading)
}

func TestPollerTicker(t *testing.T) {
	var calls int32
	f := metric.FetcherFunc(func(ctx context.Context, points int) (*model.MetricsPayload, error) {
		n := atomic.AddInt32(&calls, 1)
		return payload(int64(n)), nil
	})

	p, cancel, done := startPoller(t, poller.Config{Interval: 10 * time.Millisecond, Points: 3}, f)
	waitState(t, p, func(s poller.State) bool { return s.Data != nil && s.Data.RefreshedAt >= 3 })
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, poller.PhaseStopped, p.State().Phase)
}

func TestPollerStopWhileInFlight(t *testing.T) {
	assert := assert.New(t)

	f := newControlledFetcher()
	p := poller.New(poller.Config{Interval: time.Hour}, f, log.Dummy)

	var mu sync.Mutex
	var transitions []poller.Phase
	p.Subscribe(func(s poller.State) {
		mu.Lock()
		transitions = append(transitions, s.Phase)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cl := f.next(t)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	// Stop cancels the in flight fetch and waits for it.
	select {
	case <-cl.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("in flight fetch was not cancelled")
	}
	cl.reply <- result{payload: payload(1000)}
	<-stopped

	mu.Lock()
	got := append([]poller.Phase{}, transitions...)
	mu.Unlock()

	st := p.State()
	assert.Equal(poller.PhaseStopped, st.Phase)
	assert.Nil(st.Data, "results arriving after teardown should be discarded")
	assert.NotContains(got, poller.PhaseReady)

	// Nothing happens after teardown.
	p.Refresh()
	select {
	case <-f.calls:
		t.Fatal("a stopped poller should not fetch")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	assert.NoError(<-done)
	assert.Error(p.Run(context.Background()), "a stopped poller can't be reused")
}

func TestPollerUnsubscribe(t *testing.T) {
	f := newControlledFetcher()
	p := poller.New(poller.Config{Interval: time.Hour}, f, log.Dummy)

	var calls int32
	unsubscribe := p.Subscribe(func(poller.State) { atomic.AddInt32(&calls, 1) })
	unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	f.next(t).reply <- result{payload: payload(1)}
	waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })
	cancel()
	<-done

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestPollerInitialFetchFromCache(t *testing.T) {
	assert := assert.New(t)

	cache := metric.NewQueryCache(4, time.Minute)
	cache.Set("metrics", payload(42))

	f := newControlledFetcher()
	p, cancel, done := startPoller(t, poller.Config{Interval: time.Hour, Cache: cache, CacheKey: "metrics"}, f)
	defer func() { cancel(); <-done }()

	st := waitState(t, p, func(s poller.State) bool { return s.Phase == poller.PhaseReady })
	assert.Equal(int64(42), st.Data.RefreshedAt, "a fresh cache entry should serve the first fetch")

	select {
	case <-f.calls:
		t.Fatal("the first fetch should not hit the API with a fresh cache entry")
	default:
	}

	// Refreshes always go to the API and update the cache.
	p.Refresh()
	f.next(t).reply <- result{payload: payload(43)}
	waitState(t, p, func(s poller.State) bool { return s.Data.RefreshedAt == 43 })

	got, ok := cache.Get("metrics")
	require.True(t, ok)
	assert.Equal(int64(43), got.RefreshedAt)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "ready", poller.PhaseReady.String())
	assert.Equal(t, "stopped", poller.PhaseStopped.String())
	assert.Equal(t, "unknown", poller.Phase(99).String())
}
