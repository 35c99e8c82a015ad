package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// EngineCollector bundles Prometheus metrics for sensitivity evaluations
// and parameter changes. It satisfies core.EvaluationRecorder.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	Evaluations       *prometheus.CounterVec
	EvaluationSeconds *prometheus.HistogramVec
	ReadoutFallbacks  *prometheus.CounterVec
	ParameterChanges  *prometheus.CounterVec
	Channels          prometheus.Gauge
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evals, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bolocalc_evaluations_total",
		Help: "Channel sensitivity evaluations, labeled by channel and outcome.",
	}, []string{"channel", "outcome"}), "bolocalc_evaluations_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bolocalc_evaluation_duration_seconds",
		Help:    "Wall time of one channel evaluation in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"channel"}), "bolocalc_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	fallbacks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bolocalc_readout_fallbacks_total",
		Help: "Evaluations whose readout NEP came from the fractional inflation fallback.",
	}, []string{"channel"}), "bolocalc_readout_fallbacks_total")
	if err != nil {
		return nil, err
	}

	changes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bolocalc_parameter_changes_total",
		Help: "Committed parameter changes, labeled by parameter name.",
	}, []string{"parameter"}), "bolocalc_parameter_changes_total")
	if err != nil {
		return nil, err
	}

	channels, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bolocalc_channels",
		Help: "Number of channels currently loaded.",
	}), "bolocalc_channels")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		Evaluations:       evals,
		EvaluationSeconds: durations,
		ReadoutFallbacks:  fallbacks,
		ParameterChanges:  changes,
		Channels:          channels,
	}, nil
}

// ObserveEvaluation records the outcome and duration of one evaluation.
func (c *EngineCollector) ObserveEvaluation(channel string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	if c.Evaluations != nil {
		c.Evaluations.WithLabelValues(channel, outcome).Inc()
	}
	if c.EvaluationSeconds != nil {
		c.EvaluationSeconds.WithLabelValues(channel).Observe(elapsed.Seconds())
	}
}

// ObserveReadoutFallback counts an evaluation that fell back to the
// fractional readout estimate.
func (c *EngineCollector) ObserveReadoutFallback(channel string) {
	if c == nil || c.ReadoutFallbacks == nil {
		return
	}
	c.ReadoutFallbacks.WithLabelValues(channel).Inc()
}

// ObserveParameterChange counts one committed change.
func (c *EngineCollector) ObserveParameterChange(parameter string) {
	if c == nil || c.ParameterChanges == nil {
		return
	}
	c.ParameterChanges.WithLabelValues(parameter).Inc()
}

// SetChannels sets the loaded-channel gauge.
func (c *EngineCollector) SetChannels(n int) {
	if c == nil || c.Channels == nil {
		return
	}
	c.Channels.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the current metrics in the text exposition format,
// for node_exporter's textfile collector after a one-shot CLI run.
func (c *EngineCollector) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("empty metrics path")
	}
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
