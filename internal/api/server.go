package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/view/gate"
	"github.com/catalogmf/catalog/internal/view/poller"
)

// App is the catalog served over HTTP.
type App interface {
	Decision() gate.Decision
	PanelState() (poller.State, bool)
	RenderPage(w io.Writer) error
	RenderPanel(w io.Writer) error
	ApplyLocalConfig(cfg *model.HostConfig)
	ClearLocalConfig()
	SetFormError(msg string)
	Notify(ctx context.Context) error
	Refresh() bool
}

// Config is the configuration of the HTTP server.
type Config struct {
	// Gatherer serves the /metrics endpoint, when nil the default one is used.
	Gatherer prometheus.Gatherer
	// Websocket serves the /ws endpoint, optional.
	Websocket http.Handler
}

type echoValidator struct {
	validate *validator.Validate
}

func (v echoValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// NewServer returns the catalog HTTP server with all the routes registered.
func NewServer(cfg Config, app App, logger log.Logger) *echo.Echo {
	if logger == nil {
		logger = log.Dummy
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = echoValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithValues(map[string]interface{}{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Debugf("http request")
			return nil
		},
	}))

	h := &handler{app: app, logger: logger}
	e.GET("/", h.page)
	e.GET("/panel", h.panel)
	e.GET("/api/state", h.state)
	e.POST("/api/refresh", h.refresh)
	e.POST("/setup", h.setup)
	e.POST("/setup/reset", h.reset)
	e.POST("/notify", h.notify)
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	if cfg.Websocket != nil {
		e.GET("/ws", echo.WrapHandler(cfg.Websocket))
	}

	return e
}
