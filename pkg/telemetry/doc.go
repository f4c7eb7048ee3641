// Package telemetry provides observability for tokenbridge runs.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and a synchronous event publisher.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.Enabled = true
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(); err != nil {
//	    return err
//	}
//
// # Logging
//
// Engine components take a plain zerolog.Logger; pass them a component logger:
//
//	logger := tel.Logger.NewComponentLogger("engine").WithNetwork("base-sepolia")
//	orchestrator := engine.NewOrchestrator(engine.Options{Logger: logger.Zerolog(), ...})
//
// # Tracing
//
// NewTracer installs its provider globally, so spans opened by the engine
// through otel.Tracer are exported with the configured exporter (otlp or
// stdout). When tracing is disabled spans are never sampled.
//
// # Metrics
//
// *Metrics satisfies the engine's MetricsRecorder. Counters cover ledger
// calls by kind and outcome, resources by action, phase outcomes, wiring
// steps and run duration. Metrics are exposed at /metrics (default :9090).
//
// # Events
//
// EventPublisher delivers events in the caller's goroutine, in subscription
// order. The CLI subscribes the SQLite event log:
//
//	tel.Events.Subscribe(func(ctx context.Context, ev telemetry.Event) error {
//	    return store.AppendEvent(ctx, toStoreEvent(ev))
//	}, nil)
package telemetry
