package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/catalogmf/catalog/internal/api"
	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/configuration"
	"github.com/catalogmf/catalog/internal/service/content"
	"github.com/catalogmf/catalog/internal/service/instrument"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/service/metric"
	"github.com/catalogmf/catalog/internal/service/metric/httpapi"
	"github.com/catalogmf/catalog/internal/service/metric/mock"
	"github.com/catalogmf/catalog/internal/view"
	"github.com/catalogmf/catalog/internal/view/page"
	"github.com/catalogmf/catalog/internal/view/poller"
	"github.com/catalogmf/catalog/internal/view/terminal"
	"github.com/catalogmf/catalog/internal/ws"
)

const shutdownTimeout = 5 * time.Second

// Main is the main application.
type Main struct {
	cfg    *cmdConfig
	logger log.Logger
}

// Run runs the main application.
func (m *Main) Run() error {
	cfg, err := newCmdConfig(os.Args[1:])
	if err != nil {
		return err
	}
	m.cfg = cfg

	// The terminal preview owns stderr, only log there without it.
	m.logger = log.Dummy
	if !m.cfg.Terminal || m.cfg.LogFile != "" {
		m.logger = log.NewZerolog(log.Config{
			Debug:      m.cfg.Debug,
			JSON:       m.cfg.LogJSON,
			File:       m.cfg.LogFile,
			MaxSizeMB:  m.cfg.LogFileMaxSizeMB,
			MaxBackups: m.cfg.LogFileMaxBackups,
		})
	}

	texts := content.Default()
	if m.cfg.CopyFile != "" {
		texts, err = content.Load(m.cfg.CopyFile)
		if err != nil {
			return err
		}
	}

	var host *model.HostConfig
	if m.cfg.HostConfigFile != "" {
		host, err = configuration.LoadHostConfig(m.cfg.HostConfigFile, m.logger)
		if err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	recorder := instrument.NewPrometheus(reg)

	base := configuration.ResolveAPIBase(m.cfg.APIBaseURL, m.cfg.PublicURL)
	path := configuration.ResolveMetricsPath(m.cfg.MetricsPath)
	client, err := httpapi.NewClient(m.cfg.clientConfig(base, path), &http.Client{})
	if err != nil {
		return err
	}
	m.logger.WithValues(map[string]interface{}{"url": client.URL(m.cfg.Points)}).Infof("using metrics API")

	var cache *metric.QueryCache
	if m.cfg.CacheSize > 0 {
		cache = metric.NewQueryCache(m.cfg.CacheSize, m.cfg.CacheMaxAge)
	}

	renderer, err := page.NewRenderer()
	if err != nil {
		return err
	}

	pollerLogger := m.logger.WithValues(map[string]interface{}{"component": "poller"})
	newPoller := func() *poller.Poller {
		return poller.New(poller.Config{
			Interval: m.cfg.RefreshInterval,
			Points:   m.cfg.Points,
			Cache:    cache,
			Recorder: recorder,
		}, client, pollerLogger)
	}

	app := view.NewApp(view.AppConfig{
		ExpectedToken:   m.cfg.ExpectedToken,
		RefreshInterval: m.cfg.RefreshInterval,
		Copy:            texts,
		ShowProducts:    m.cfg.ShowProducts,
		Recorder:        recorder,
	}, host, newPoller, renderer, m.logger)

	hub := ws.New(app, m.logger.WithValues(map[string]interface{}{"component": "websocket"}))
	app.OnChange(hub.Broadcast)

	server := api.NewServer(api.Config{
		Gatherer:  reg,
		Websocket: hub,
	}, app, m.logger.WithValues(map[string]interface{}{"component": "http"}))

	var g run.Group

	// Catalog app.
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error {
				return app.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Websocket hub.
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error {
				hub.Run(ctx)
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				m.logger.Infof("serving catalog on %s", m.cfg.ListenAddress)
				if err := server.Start(m.cfg.ListenAddress); err != nil && err != http.ErrServerClosed {
					return errors.Wrap(err, "catalog server failed")
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = server.Shutdown(ctx)
			},
		)
	}

	// Mock metrics API.
	if m.cfg.MockAPIAddress != "" {
		seed := m.cfg.MockAPISeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		mockSrv := &http.Server{
			Addr:    m.cfg.MockAPIAddress,
			Handler: mockMux(mock.NewHandler(seed), path),
		}
		g.Add(
			func() error {
				m.logger.Infof("serving mock metrics API on %s%s", m.cfg.MockAPIAddress, path)
				if err := mockSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return errors.Wrap(err, "mock metrics API failed")
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = mockSrv.Shutdown(ctx)
			},
		)
	}

	// Query cache janitor.
	if cache != nil {
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error {
				cache.Run(ctx)
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Host configuration reloads.
	if m.cfg.HostConfigFile != "" && m.cfg.HostConfigWatch {
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error {
				return configuration.WatchHostConfig(ctx, m.cfg.HostConfigFile, app.SetHostConfig, m.logger)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Terminal preview, quitting it stops everything.
	if m.cfg.Terminal {
		preview, err := terminal.NewPreview(app, texts, m.logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error {
				return preview.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Capture signals.
	{
		sigC := make(chan os.Signal, 1)
		exitC := make(chan struct{})
		signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)
		g.Add(
			func() error {
				select {
				case <-sigC:
					m.logger.Infof("signal captured")
				case <-exitC:
				}
				return nil
			},
			func(_ error) {
				close(exitC)
			},
		)
	}

	return g.Run()
}

// mockMux serves the mock API only on the metrics path.
func mockMux(h http.Handler, path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	return mux
}

func main() {
	m := &Main{}

	if err := m.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running app: %s\n", err)
		os.Exit(1)
	}

	os.Exit(0)
}
