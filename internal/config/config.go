// Package config loads the client settings from the properties file next to
// the binary's working directory, with DOCGEN_* environment overrides.
//
// Example windwardreports.properties:
//
//	baseuri=http://localhost:5000/
//	poll.maxwait=10m
//	metrics.backend=datadog
//	history.kind=sqlite
//	history.dsn=file:runs.db
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultFile is the properties file read from the working directory.
const DefaultFile = "windwardreports.properties"

// Config is the resolved configuration.
type Config struct {
	BaseURI string

	PollInterval time.Duration
	// PollMaxWait bounds the status poll. 0 waits forever.
	PollMaxWait time.Duration
	HTTPTimeout time.Duration

	Metrics Metrics
	History History

	LogLevel string
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "datadog" or "pushgateway".
	Backend     string
	Job         string
	Tags        string
	Pushgateway string
	FlushEvery  time.Duration
}

// History selects the optional run-history store.
type History struct {
	// Kind is "", "sqlite", "postgres" or "sqlserver". Empty disables history.
	Kind string
	DSN  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll.interval", 100*time.Millisecond)
	v.SetDefault("poll.maxwait", time.Duration(0))
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.job", "runreport")
	v.SetDefault("metrics.tags", "")
	v.SetDefault("metrics.pushgateway", "http://localhost:9091")
	v.SetDefault("metrics.flush", time.Minute)
	v.SetDefault("history.kind", "")
	v.SetDefault("history.dsn", "")
	v.SetDefault("log.level", "info")
}

// Load reads path (a Java-style properties file) and applies environment
// overrides such as DOCGEN_BASEURI or DOCGEN_HISTORY_DSN.
//
// Edge cases:
//   - A missing file is not an error when DOCGEN_BASEURI is set.
//
// Errors:
//   - The file exists but cannot be parsed.
//   - No baseuri from either source.
//   - A duration value does not parse.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	v.SetEnvPrefix("DOCGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if v.GetString("baseuri") == "" {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		BaseURI:  strings.TrimSpace(v.GetString("baseuri")),
		LogLevel: v.GetString("log.level"),
		Metrics: Metrics{
			Backend:     strings.ToLower(strings.TrimSpace(v.GetString("metrics.backend"))),
			Job:         v.GetString("metrics.job"),
			Tags:        v.GetString("metrics.tags"),
			Pushgateway: v.GetString("metrics.pushgateway"),
		},
		History: History{
			Kind: strings.ToLower(strings.TrimSpace(v.GetString("history.kind"))),
			DSN:  v.GetString("history.dsn"),
		},
	}
	if cfg.BaseURI == "" {
		return Config{}, errors.New("config: baseuri is required")
	}

	var err error
	if cfg.PollInterval, err = duration(v, "poll.interval"); err != nil {
		return Config{}, err
	}
	if cfg.PollMaxWait, err = duration(v, "poll.maxwait"); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = duration(v, "http.timeout"); err != nil {
		return Config{}, err
	}
	if cfg.Metrics.FlushEvery, err = duration(v, "metrics.flush"); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return cfg, nil
}

// duration reads a key that may hold a Go duration ("250ms") or a bare
// integer of milliseconds ("250").
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.Get(key)
	if d, ok := raw.(time.Duration); ok {
		return d, nil
	}
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	ms := v.GetInt64(key)
	if ms == 0 && s != "0" {
		return 0, errors.Errorf("config: %s: invalid duration %q", key, s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
