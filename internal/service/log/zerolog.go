package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the configuration of the zerolog based logger.
type Config struct {
	Debug bool
	JSON  bool
	// File is optional, when set the logs are written to a rotated file
	// instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (c *Config) defaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
}

type zlog struct {
	logger zerolog.Logger
}

// NewZerolog returns a Logger backed by zerolog.
func NewZerolog(cfg Config) Logger {
	cfg.defaults()

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}
	if !cfg.JSON {
		w = zerolog.ConsoleWriter{Out: w, NoColor: cfg.File != ""}
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	return newZerolog(w, level)
}

func newZerolog(w io.Writer, level zerolog.Level) Logger {
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &zlog{logger: l}
}

func (z *zlog) Infof(format string, args ...interface{}) {
	z.logger.Info().Msgf(format, args...)
}

func (z *zlog) Warningf(format string, args ...interface{}) {
	z.logger.Warn().Msgf(format, args...)
}

func (z *zlog) Errorf(format string, args ...interface{}) {
	z.logger.Error().Msgf(format, args...)
}

func (z *zlog) Debugf(format string, args ...interface{}) {
	z.logger.Debug().Msgf(format, args...)
}

func (z *zlog) WithValues(kv map[string]interface{}) Logger {
	return &zlog{logger: z.logger.With().Fields(kv).Logger()}
}
