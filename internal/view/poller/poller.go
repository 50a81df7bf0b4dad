package poller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/instrument"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/service/metric"
)

// Phase is the lifecycle phase of a Poller.
type Phase int

// Poller phases.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// State is the observable state of the poller. A new State replaces the
// previous one on every transition.
type State struct {
	Phase Phase
	// Data is the last payload received, it survives failed refreshes.
	Data *model.MetricsPayload
	// Loading is only true while the first fetch is in flight.
	Loading bool
	// Refreshing is true while a refresh fetch is in flight.
	Refreshing bool
	// Err is the error of the last fetch, nil if it succeeded.
	Err       error
	UpdatedAt time.Time
}

// ErrorMessage returns the user facing error message, empty if no error.
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Config is the configuration of the Poller.
type Config struct {
	// Interval is the refresh interval.
	Interval time.Duration
	// Points is the number of points per series requested.
	Points int
	// Cache is optional, when set the first fetch is served from a fresh
	// entry and every winning result is stored on it.
	Cache *metric.QueryCache
	// CacheKey is the key used on the cache.
	CacheKey string
	// Recorder records the fetch outcomes.
	Recorder instrument.Recorder
}

func (c *Config) defaults() {
	const (
		defInterval = 6 * time.Second
	)

	if c.Interval <= 0 {
		c.Interval = defInterval
	}
	if c.Points <= 0 {
		c.Points = metric.DefaultPoints
	}
	if c.CacheKey == "" {
		c.CacheKey = "metrics:" + strconv.Itoa(c.Points)
	}
	if c.Recorder == nil {
		c.Recorder = instrument.Dummy
	}
}

// Listener is called with the new state after every transition. Listeners
// are called outside the poller lock but must not call Stop.
type Listener func(State)

// Poller fetches the metrics periodically and keeps the state of the last
// fetch. Only the last issued fetch can change the state, older in flight
// fetches are cancelled and their results discarded.
type Poller struct {
	cfg     Config
	fetcher metric.Fetcher
	logger  log.Logger
	now     func() time.Time

	mu          sync.Mutex
	runCtx      context.Context
	state       State
	generation  uint64
	cancelFetch context.CancelFunc
	running     bool
	stopped     bool
	listeners   map[int]Listener
	nextID      int
	inflight    sync.WaitGroup
}

// New returns a new Poller.
func New(cfg Config, fetcher metric.Fetcher, logger log.Logger) *Poller {
	cfg.defaults()
	if logger == nil {
		logger = log.Dummy
	}

	return &Poller{
		cfg:       cfg,
		fetcher:   fetcher,
		logger:    logger,
		now:       time.Now,
		state:     State{Phase: PhaseIdle},
		listeners: map[int]Listener{},
	}
}

// Interval returns the refresh interval.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// Run starts polling. The first fetch is issued right away, then one on
// every interval. Run blocks until the context is done and stops the poller
// before returning.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return errors.New("poller already stopped")
	}
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	p.running = true
	p.runCtx = ctx
	p.mu.Unlock()
	defer p.Stop()

	p.fetch(ctx, true)

	tk := time.NewTicker(p.cfg.Interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
		}

		p.fetch(ctx, false)
	}
}

// Refresh issues a new fetch out of the interval, cancelling the one in
// flight if any. The fetch belongs to the poller run, not to the caller, so
// it's a no-op until Run is called.
func (p *Poller) Refresh() {
	p.mu.Lock()
	ctx := p.runCtx
	p.mu.Unlock()

	if ctx == nil {
		return
	}
	p.fetch(ctx, false)
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers a listener for state transitions. The returned func
// removes the listener.
func (p *Poller) Subscribe(l Listener) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return func() {}
	}
	id := p.nextID
	p.nextID++
	p.listeners[id] = l

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Stop cancels the fetch in flight and stops the poller. After Stop returns
// the state doesn't change anymore and no listener is called. Stop is
// idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.cancelFetch != nil {
		p.cancelFetch()
		p.cancelFetch = nil
	}
	p.state.Phase = PhaseStopped
	p.state.Loading = false
	p.state.Refreshing = false
	p.listeners = map[int]Listener{}
	p.mu.Unlock()

	// Wait for the fetches that were in flight, they will discard their results.
	p.inflight.Wait()
	p.logger.Debugf("poller stopped")
}

func (p *Poller) fetch(parent context.Context, initial bool) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}

	// Only one fetch is live at a time.
	if p.cancelFetch != nil {
		p.cancelFetch()
	}
	p.generation++
	gen := p.generation
	ctx, cancel := context.WithCancel(parent)
	p.cancelFetch = cancel

	// The loading indicator is only for the first fetch, refreshes keep
	// showing the current data.
	if initial && p.state.Data == nil {
		p.state.Phase = PhaseLoading
		p.state.Loading = true
	} else {
		p.state.Refreshing = true
	}
	st := p.state
	ls := p.snapshotListeners()
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()
		defer cancel()

		if initial {
			notify(ls, st)
		}

		start := p.now()
		payload, cached, err := p.get(ctx, initial)
		p.commit(gen, payload, cached, err, p.now().Sub(start))
	}()
}

// get returns the payload from the cache on the first fetch if fresh,
// otherwise from the fetcher.
func (p *Poller) get(ctx context.Context, initial bool) (payload *model.MetricsPayload, cached bool, err error) {
	if initial && p.cfg.Cache != nil {
		if payload, ok := p.cfg.Cache.Get(p.cfg.CacheKey); ok {
			return payload, true, nil
		}
	}

	payload, err = p.fetcher.FetchMetrics(ctx, p.cfg.Points)
	if err == nil && payload == nil {
		err = errors.New("metrics API returned an empty payload")
	}
	return payload, false, err
}

func (p *Poller) commit(gen uint64, payload *model.MetricsPayload, cached bool, err error, took time.Duration) {
	p.mu.Lock()

	// Superseded or torn down, the result is not observable.
	if p.stopped || gen != p.generation {
		p.mu.Unlock()
		p.cfg.Recorder.ObserveFetch(instrument.OutcomeDiscarded, took)
		p.logger.Debugf("discarded fetch result of generation %d", gen)
		return
	}
	if metric.IsCanceled(err) {
		// Nothing else is in flight, the refresh indicator would get stuck.
		p.cancelFetch = nil
		wasRefreshing := p.state.Refreshing
		p.state.Refreshing = false
		st := p.state
		ls := p.snapshotListeners()
		p.mu.Unlock()

		p.cfg.Recorder.ObserveFetch(instrument.OutcomeCanceled, took)
		if wasRefreshing {
			notify(ls, st)
		}
		return
	}

	p.cancelFetch = nil
	now := p.now()
	outcome := instrument.OutcomeSuccess
	if err != nil {
		outcome = instrument.OutcomeError
		p.state = State{
			Phase:     PhaseFailed,
			Data:      p.state.Data,
			Err:       err,
			UpdatedAt: now,
		}
	} else {
		if cached {
			outcome = instrument.OutcomeCached
		} else if p.cfg.Cache != nil {
			p.cfg.Cache.Set(p.cfg.CacheKey, payload)
		}
		p.state = State{
			Phase:     PhaseReady,
			Data:      payload,
			UpdatedAt: now,
		}
	}
	st := p.state
	ls := p.snapshotListeners()
	p.mu.Unlock()

	p.cfg.Recorder.ObserveFetch(outcome, took)
	if err != nil {
		p.logger.Warningf("metrics fetch failed: %s", err)
	}
	notify(ls, st)
}

// snapshotListeners must be called with the lock held.
func (p *Poller) snapshotListeners() []Listener {
	ls := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	return ls
}

func notify(ls []Listener, st State) {
	for _, l := range ls {
		l(st)
	}
}
