// Package config assembles and validates the monitor's runtime options
// from flags and WFMON_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. WFMON_INTERVAL.
const EnvPrefix = "WFMON"

// keyReplacer maps hyphenated flag names onto env-style keys, so
// --metrics-addr binds to WFMON_METRICS_ADDR.
func keyReplacer() *strings.Replacer {
	return strings.NewReplacer("-", "_")
}

// BindEnv wires WFMON_ environment variables into the viper instance.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(keyReplacer())
	v.AutomaticEnv()
}

// Options holds all validated configuration for one monitoring session.
type Options struct {
	// Refresh cadence and snapshot shape.
	Interval time.Duration
	Events   int
	AllJobs  bool
	Once     bool

	// Live-queue parameters, all optional.
	Schedd       string
	Collector    string
	Constraint   string
	TokenPath    string
	CertPath     string
	KeyPath      string
	PasswordFile string

	// Observability, opt-in.
	MetricsAddr  string
	OTELEndpoint string
	Debug        bool
}

// FromViper builds Options from the bound flag/env state.
func FromViper(v *viper.Viper) (*Options, error) {
	intervalSec := v.GetFloat64("interval")
	if intervalSec <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", intervalSec)
	}

	events := v.GetInt("events")
	if events < 0 {
		return nil, fmt.Errorf("events must be non-negative, got %d", events)
	}

	return &Options{
		Interval:     time.Duration(intervalSec * float64(time.Second)),
		Events:       events,
		AllJobs:      v.GetBool("all-jobs"),
		Once:         v.GetBool("once"),
		Schedd:       v.GetString("schedd"),
		Collector:    v.GetString("collector"),
		Constraint:   v.GetString("constraint"),
		TokenPath:    v.GetString("token"),
		CertPath:     v.GetString("cert"),
		KeyPath:      v.GetString("key"),
		PasswordFile: v.GetString("password-file"),
		MetricsAddr:  v.GetString("metrics-addr"),
		OTELEndpoint: v.GetString("otel-endpoint"),
		Debug:        v.GetBool("debug"),
	}, nil
}
