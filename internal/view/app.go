package view

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/content"
	"github.com/catalogmf/catalog/internal/service/instrument"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/view/gate"
	"github.com/catalogmf/catalog/internal/view/page"
	"github.com/catalogmf/catalog/internal/view/poller"
)

// Errors returned by App.Notify.
var (
	ErrInvalidConfig = errors.New("host configuration is not valid")
	ErrNoNotifier    = errors.New("host didn't provide a notifier")
)

// NotifyTarget is the target sent on every host notification.
const NotifyTarget = "catalog"

// PollerFactory returns a new poller every time the metrics panel is mounted.
type PollerFactory func() *poller.Poller

// AppConfig are the options to run the app.
type AppConfig struct {
	ExpectedToken string
	// RefreshInterval is the interval shown while no panel is mounted.
	RefreshInterval time.Duration
	Copy            content.Copy
	Products        []model.Product
	ShowProducts    bool
	Recorder        instrument.Recorder
}

func (a *AppConfig) defaults() {
	if a.ExpectedToken == "" {
		a.ExpectedToken = gate.DefaultExpectedToken
	}
	if a.RefreshInterval <= 0 {
		a.RefreshInterval = 6 * time.Second
	}
	if a.Copy.App.Title == "" {
		a.Copy = content.Default()
	}
	if a.Products == nil {
		a.Products = model.DefaultProducts
	}
	if a.Recorder == nil {
		a.Recorder = instrument.Dummy
	}
}

// panel is a mounted metrics panel.
type panel struct {
	poller *poller.Poller
	cancel context.CancelFunc
	unsub  func()
	done   chan struct{}
}

// App represents the catalog. It gates everything behind the host
// configuration and only mounts the metrics panel while the configuration
// is valid.
type App struct {
	cfg       AppConfig
	gate      gate.Gate
	newPoller PollerFactory
	renderer  *page.Renderer
	logger    log.Logger

	// mountMu serializes mounts and unmounts.
	mountMu sync.Mutex

	mu       sync.Mutex
	ctx      context.Context
	running  bool
	host     *model.HostConfig
	local    *model.HostConfig
	formErr  string
	decision gate.Decision
	panel    *panel

	lisMu     sync.Mutex
	listeners map[int]func()
	nextID    int
}

// NewApp returns the catalog app for the configuration the host supplied.
func NewApp(cfg AppConfig, host *model.HostConfig, newPoller PollerFactory, renderer *page.Renderer, logger log.Logger) *App {
	cfg.defaults()
	if logger == nil {
		logger = log.Dummy
	}

	g := gate.New(cfg.ExpectedToken, cfg.Copy.App.AnonymousUser)
	return &App{
		cfg:       cfg,
		gate:      g,
		newPoller: newPoller,
		renderer:  renderer,
		logger:    logger,
		host:      host,
		decision:  g.Decide(nil, host),
		listeners: map[int]func(){},
	}
}

// Run will start running the application. It blocks until the context
// is done, then unmounts the panel.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("already running")
	}
	a.running = true
	a.ctx = ctx
	a.mu.Unlock()

	a.reconcile()
	<-ctx.Done()

	a.mountMu.Lock()
	defer a.mountMu.Unlock()
	a.unmount()
	return nil
}

// SetHostConfig replaces the configuration supplied by the host.
func (a *App) SetHostConfig(cfg *model.HostConfig) {
	a.mu.Lock()
	a.host = cfg
	a.mu.Unlock()
	a.reconcile()
}

// ApplyLocalConfig sets the local override, it wins over the host
// configuration until cleared.
func (a *App) ApplyLocalConfig(cfg *model.HostConfig) {
	a.mu.Lock()
	a.local = cfg
	a.formErr = ""
	a.mu.Unlock()
	a.reconcile()
}

// ClearLocalConfig removes the local override.
func (a *App) ClearLocalConfig() {
	a.mu.Lock()
	a.local = nil
	a.formErr = ""
	a.mu.Unlock()
	a.reconcile()
}

// SetFormError stores the error shown on the setup form.
func (a *App) SetFormError(msg string) {
	a.mu.Lock()
	a.formErr = msg
	a.mu.Unlock()
	a.changed()
}

// Decision returns the current gate decision.
func (a *App) Decision() gate.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decision
}

// PanelState returns the state of the mounted panel poller. The bool is
// false when there is no panel mounted.
func (a *App) PanelState() (poller.State, bool) {
	a.mu.Lock()
	p := a.panel
	a.mu.Unlock()

	if p == nil {
		return poller.State{}, false
	}
	return p.poller.State(), true
}

// Refresh forces a new fetch on the mounted panel.
func (a *App) Refresh() bool {
	a.mu.Lock()
	p := a.panel
	a.mu.Unlock()

	if p == nil {
		return false
	}
	p.poller.Refresh()
	return true
}

// RefreshInterval returns the refresh interval of the mounted panel.
func (a *App) RefreshInterval() time.Duration {
	a.mu.Lock()
	p := a.panel
	a.mu.Unlock()

	if p == nil {
		return a.cfg.RefreshInterval
	}
	return p.poller.Interval()
}

// Notify sends the catalog notification to the host. It's only available
// with a valid configuration that has a notifier.
func (a *App) Notify(ctx context.Context) error {
	d := a.Decision()
	if !d.Valid {
		return ErrInvalidConfig
	}
	if d.Config.Notifier == nil {
		return ErrNoNotifier
	}

	hc := a.cfg.Copy.Header
	err := d.Config.Notifier.Notify(ctx, hc.NotifyBody, model.NotifyOptions{
		Title:  hc.NotifyTitle,
		Target: NotifyTarget,
	})
	a.cfg.Recorder.ObserveNotify(err == nil)
	if err != nil {
		return errors.Wrap(err, "could not notify host")
	}
	return nil
}

// OnChange registers a func called every time the rendered output may
// have changed: poll results and configuration changes. The returned func
// removes it.
func (a *App) OnChange(fn func()) (remove func()) {
	a.lisMu.Lock()
	defer a.lisMu.Unlock()

	id := a.nextID
	a.nextID++
	a.listeners[id] = fn

	return func() {
		a.lisMu.Lock()
		defer a.lisMu.Unlock()
		delete(a.listeners, id)
	}
}

// View returns the view of the whole page.
func (a *App) View() page.View {
	a.mu.Lock()
	d := a.decision
	local := a.local
	formErr := a.formErr
	a.mu.Unlock()

	c := a.cfg.Copy
	v := page.View{Title: c.App.Title}
	if !d.Valid {
		v.Setup = page.NewSetupView(c, d.Config, local != nil, formErr)
		return v
	}

	v.Catalog = &page.CatalogView{
		Copy:         c.Catalog,
		Header:       page.NewHeaderView(c, d),
		Panel:        a.PanelView(),
		ShowProducts: a.cfg.ShowProducts,
		Products:     page.NewProductViews(a.cfg.Products),
	}
	return v
}

// PanelView returns the view of the metrics panel.
func (a *App) PanelView() page.PanelView {
	st, ok := a.PanelState()
	if !ok {
		st = poller.State{Phase: poller.PhaseIdle}
	}
	return page.NewPanelView(a.cfg.Copy.Metrics, st, a.RefreshInterval())
}

// RenderPage renders the whole page.
func (a *App) RenderPage(w io.Writer) error {
	return a.renderer.Page(w, a.View())
}

// RenderPanel renders the metrics panel fragment.
func (a *App) RenderPanel(w io.Writer) error {
	return a.renderer.Panel(w, a.PanelView())
}

// reconcile evaluates the configuration and mounts or unmounts the panel.
func (a *App) reconcile() {
	a.mountMu.Lock()
	defer a.mountMu.Unlock()

	a.mu.Lock()
	d := a.gate.Decide(a.local, a.host)
	prev := a.decision
	a.decision = d
	ctx := a.ctx
	mounted := a.panel != nil
	a.mu.Unlock()

	if prev.Valid != d.Valid {
		a.logger.WithValues(map[string]interface{}{"valid": d.Valid}).Infof("host configuration changed")
	}

	switch {
	case ctx == nil || ctx.Err() != nil:
	case d.Valid && !mounted:
		a.mount(ctx)
	case !d.Valid && mounted:
		a.unmount()
	}

	a.changed()
}

// mount must be called with mountMu held.
func (a *App) mount(ctx context.Context) {
	if a.newPoller == nil {
		a.logger.Errorf("poller factory is nil, cannot mount metrics panel")
		return
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &panel{
		poller: a.newPoller(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.unsub = p.poller.Subscribe(func(poller.State) { a.changed() })

	a.mu.Lock()
	a.panel = p
	a.mu.Unlock()

	go func() {
		defer close(p.done)
		if err := p.poller.Run(pctx); err != nil {
			a.logger.Errorf("metrics poller failed: %s", err)
		}
	}()
	a.logger.Debugf("metrics panel mounted")
}

// unmount stops the panel poller and waits until it's done. It must not
// be called with mu held, the poller listeners take it.
func (a *App) unmount() {
	a.mu.Lock()
	p := a.panel
	a.panel = nil
	a.mu.Unlock()

	if p == nil {
		return
	}
	p.unsub()
	p.cancel()
	p.poller.Stop()
	<-p.done
	a.logger.Debugf("metrics panel unmounted")
}

func (a *App) changed() {
	a.lisMu.Lock()
	fns := make([]func(), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.lisMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
