package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for provisioning runs. A Metrics built
// from a disabled config accepts every Record call and drops it.
type Metrics struct {
	config MetricsConfig

	calls         *prometheus.CounterVec
	deployments   *prometheus.CounterVec
	phases        *prometheus.CounterVec
	wiringSteps   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_calls_total",
				Help:      "Total number of ledger calls issued, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		deployments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_total",
				Help:      "Total number of resources resolved, by resource and action",
			},
			[]string{"resource", "action"},
		),
		phases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phases_total",
				Help:      "Total number of initialization phases evaluated, by outcome",
			},
			[]string{"phase", "outcome"},
		),
		wiringSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wiring_steps_total",
				Help:      "Total number of controller wiring steps executed",
			},
			[]string{"step", "outcome"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of provisioning runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of run failures by error class and code",
			},
			[]string{"class", "code"},
		),
	}

	registry.MustRegister(
		m.calls,
		m.deployments,
		m.phases,
		m.wiringSteps,
		m.runsCompleted,
		m.runDuration,
		m.errorsByCode,
	)

	return m, nil
}

// RecordCall counts a ledger call (deploy, send or static).
func (m *Metrics) RecordCall(kind, outcome string) {
	if m.calls == nil {
		return
	}
	m.calls.WithLabelValues(kind, outcome).Inc()
}

// RecordDeployment counts a resource resolution.
func (m *Metrics) RecordDeployment(resource, action string) {
	if m.deployments == nil {
		return
	}
	m.deployments.WithLabelValues(resource, action).Inc()
}

// RecordPhase counts an initialization phase outcome.
func (m *Metrics) RecordPhase(phase, outcome string) {
	if m.phases == nil {
		return
	}
	m.phases.WithLabelValues(phase, outcome).Inc()
}

// RecordWiringStep counts a controller wiring step.
func (m *Metrics) RecordWiringStep(step, outcome string) {
	if m.wiringSteps == nil {
		return
	}
	m.wiringSteps.WithLabelValues(step, outcome).Inc()
}

// RecordRun records the final status and duration of a run.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordError counts a run failure by class and code.
func (m *Metrics) RecordError(class, code string) {
	if m.errorsByCode == nil {
		return
	}
	m.errorsByCode.WithLabelValues(class, code).Inc()
}

// Registry exposes the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. The returned
// server may be shut down by the caller; it is nil when metrics are disabled.
func (m *Metrics) StartMetricsServer() (*http.Server, error) {
	if !m.config.Enabled {
		return nil, nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("metrics server stopped")
		}
	}()

	return server, nil
}
