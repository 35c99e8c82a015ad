// Package config loads the runtime settings that do not belong in an
// instrument file: logging, tracing, grid resolution and the random seed.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/signalsfoundry/bolocalc/internal/logging"
	"github.com/signalsfoundry/bolocalc/internal/observability"
)

// Runtime is populated from BOLOCALC_* environment variables. Command-line
// flags override individual fields after parsing.
type Runtime struct {
	LogLevel  string `env:"BOLOCALC_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"BOLOCALC_LOG_FORMAT" envDefault:"text"`

	TracingEnabled     bool    `env:"BOLOCALC_TRACING_ENABLED"      envDefault:"false"`
	TracingExporter    string  `env:"BOLOCALC_TRACING_EXPORTER"     envDefault:"stdout"`
	TracingServiceName string  `env:"BOLOCALC_TRACING_SERVICE_NAME" envDefault:"bolocalc"`
	OTLPEndpoint       string  `env:"BOLOCALC_OTLP_ENDPOINT"`
	TracingSampleRatio float64 `env:"BOLOCALC_TRACING_SAMPLE_RATIO" envDefault:"1"`

	// FreqResolutionGHz is the frequency grid step.
	FreqResolutionGHz float64 `env:"BOLOCALC_FREQ_RESOLUTION_GHZ" envDefault:"0.1"`
	// Seed pins every random draw when set.
	Seed *uint64 `env:"BOLOCALC_SEED"`
	// MetricsFile, when set, receives a Prometheus text dump after each run.
	MetricsFile string `env:"BOLOCALC_METRICS_FILE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Runtime.
func Load() (Runtime, error) {
	var rt Runtime
	if err := ParseEnv(&rt); err != nil {
		return Runtime{}, err
	}
	if err := rt.Validate(); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

// Validate rejects settings no run could use.
func (r Runtime) Validate() error {
	if r.FreqResolutionGHz <= 0 {
		return fmt.Errorf("frequency resolution must be positive, got %v GHz", r.FreqResolutionGHz)
	}
	if r.TracingSampleRatio < 0 || r.TracingSampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio %v outside [0, 1]", r.TracingSampleRatio)
	}
	return nil
}

// Logging returns the logger configuration.
func (r Runtime) Logging() logging.Config {
	return logging.Config{Level: r.LogLevel, Format: r.LogFormat}
}

// Tracing returns the tracer configuration.
func (r Runtime) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     r.TracingEnabled,
		ServiceName: r.TracingServiceName,
		Exporter:    r.TracingExporter,
		Endpoint:    r.OTLPEndpoint,
		SampleRatio: r.TracingSampleRatio,
	}
}

// FreqResolutionHz is FreqResolutionGHz in Hz.
func (r Runtime) FreqResolutionHz() float64 { return r.FreqResolutionGHz * 1e9 }
