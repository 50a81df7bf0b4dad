package main

import (
	"os"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"

	"github.com/catalogmf/catalog/internal/service/metric"
	"github.com/catalogmf/catalog/internal/view/gate"
)

const (
	appName = "catalog"
	descr   = "Catalog microfrontend with live metrics sparklines."

	defListenAddress   = ":8080"
	defRefreshInterval = 6 * time.Second
	defAPITimeout      = 10 * time.Second
	defCacheMaxAge     = 6 * time.Second
)

type cmdConfig struct {
	ListenAddress     string `validate:"required"`
	APIBaseURL        string `validate:"omitempty,url"`
	PublicURL         string `validate:"omitempty,url"`
	MetricsPath       string
	APITimeout        time.Duration `validate:"gte=0"`
	MockAPIAddress    string
	MockAPISeed       int64
	RefreshInterval   time.Duration `validate:"gt=0"`
	Points            int           `validate:"gte=1"`
	CacheSize         int           `validate:"gte=0"`
	CacheMaxAge       time.Duration `validate:"gte=0"`
	HostConfigFile    string
	HostConfigWatch   bool
	ExpectedToken     string `validate:"required"`
	CopyFile          string
	ShowProducts      bool
	Terminal          bool
	Debug             bool
	LogJSON           bool
	LogFile           string
	LogFileMaxSizeMB  int `validate:"gte=0"`
	LogFileMaxBackups int `validate:"gte=0"`
}

func newCmdConfig(args []string) (*cmdConfig, error) {
	c := &cmdConfig{}

	app := kingpin.New(appName, descr)
	app.Version(version.Print(appName))

	app.Flag("listen-address", "the address where the catalog is served.").Default(defListenAddress).StringVar(&c.ListenAddress)
	app.Flag("api.base-url", "the metrics API address, by default it's derived from the public URL.").Envar("CATALOG_API_MOCK_URL").StringVar(&c.APIBaseURL)
	app.Flag("api.public-url", "the URL where the catalog is reached, its host is used for the metrics API when there is no base URL.").Envar("CATALOG_PUBLIC_URL").StringVar(&c.PublicURL)
	app.Flag("api.metrics-path", "the path of the metrics endpoint.").Envar("CATALOG_API_METRICS_PATH").StringVar(&c.MetricsPath)
	app.Flag("api.timeout", "the timeout of every metrics request, 0 disables it.").Default(defAPITimeout.String()).DurationVar(&c.APITimeout)
	app.Flag("mock-api.listen-address", "when set a mock metrics API is served on this address.").StringVar(&c.MockAPIAddress)
	app.Flag("mock-api.seed", "the seed of the mock metrics API random walk, 0 uses the current time.").Int64Var(&c.MockAPISeed)
	app.Flag("refresh-interval", "the metrics refresh interval.").Short('r').Default(defRefreshInterval.String()).DurationVar(&c.RefreshInterval)
	app.Flag("points", "the number of points requested per series.").Default("22").IntVar(&c.Points)
	app.Flag("cache.size", "the max number of cached metric queries, 0 disables the cache.").Default("16").IntVar(&c.CacheSize)
	app.Flag("cache.max-age", "the time a cached metrics query is fresh.").Default(defCacheMaxAge.String()).DurationVar(&c.CacheMaxAge)
	app.Flag("host.config-file", "the host configuration YAML file.").Short('c').StringVar(&c.HostConfigFile)
	app.Flag("host.watch", "reload the host configuration file when it changes.").Default("true").BoolVar(&c.HostConfigWatch)
	app.Flag("host.expected-token", "the token the host configuration must have.").Default(gate.DefaultExpectedToken).StringVar(&c.ExpectedToken)
	app.Flag("copy.file", "YAML file that overrides the catalog texts.").StringVar(&c.CopyFile)
	app.Flag("catalog.show-products", "show the product grid under the metrics.").Default("true").BoolVar(&c.ShowProducts)
	app.Flag("terminal", "render the catalog on the terminal instead of serving the web page only.").Short('t').BoolVar(&c.Terminal)
	app.Flag("debug", "enable debug mode.").BoolVar(&c.Debug)
	app.Flag("log.json", "log in JSON format.").BoolVar(&c.LogJSON)
	app.Flag("log.file", "write the logs to a rotated file.").StringVar(&c.LogFile)
	app.Flag("log.file-max-size", "the max size in megabytes of a log file before rotating it.").Default("50").IntVar(&c.LogFileMaxSizeMB)
	app.Flag("log.file-max-backups", "the max number of rotated log files kept.").Default("3").IntVar(&c.LogFileMaxBackups)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *cmdConfig) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid flags")
	}
	if c.HostConfigFile != "" {
		if _, err := os.Stat(c.HostConfigFile); err != nil {
			return errors.Wrapf(err, "host config file %q", c.HostConfigFile)
		}
	}
	return nil
}

// clientConfig returns the metrics API client configuration.
func (c *cmdConfig) clientConfig(base, path string) metric.ClientConfig {
	return metric.ClientConfig{
		BaseURL:       base,
		MetricsPath:   path,
		DefaultPoints: c.Points,
		Timeout:       c.APITimeout,
	}
}
