package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "BOARDSYNC_LOG_LEVEL"
	EnvLogFormat    = "BOARDSYNC_LOG_FORMAT"
	EnvLogTimestamp = "BOARDSYNC_LOG_TIMESTAMP"
	EnvLogNoColor   = "BOARDSYNC_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type Config struct {
	Level     zerolog.Level
	JSON      bool
	Timestamp bool
	NoColor   bool
}

// Options are the config-file values; blanks fall back to the profile.
type Options struct {
	Level     string
	Format    string
	Timestamp *bool
	NoColor   bool
}

// New builds a logger writing to w. Environment variables override opts.
func New(w io.Writer, profile Profile, opts Options) zerolog.Logger {
	cfg := defaultConfig(profile)
	if lvl, ok := parseLevel(opts.Level); ok {
		cfg.Level = lvl
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		cfg.JSON = true
	}
	if opts.Timestamp != nil {
		cfg.Timestamp = *opts.Timestamp
	}
	cfg.NoColor = cfg.NoColor || opts.NoColor
	applyEnvOverrides(&cfg)
	return build(w, cfg)
}

// Nop discards everything.
func Nop() zerolog.Logger { return zerolog.Nop() }

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func build(w io.Writer, cfg Config) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	out := w
	if !cfg.JSON {
		cw := zerolog.ConsoleWriter{Out: w, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = cw
	}
	zc := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		zc = zc.Timestamp()
	}
	return zc.Logger()
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogFormat))) {
	case "json":
		cfg.JSON = true
	case "console":
		cfg.JSON = false
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
