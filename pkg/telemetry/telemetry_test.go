package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "production with endpoint", mutate: func(c *Config) {
			*c = *ProductionConfig()
			c.Tracing.Enabled = true
			c.Tracing.Endpoint = "collector:4317"
		}},
		{name: "missing service", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "service name"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "invalid log level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "invalid log format"},
		{name: "bad exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: "invalid trace exporter"},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, wantErr: "requires an endpoint"},
		{name: "sampling out of range", mutate: func(c *Config) { c.Tracing.SamplingRate = 1.5 }, wantErr: "sampling rate"},
		{name: "metrics without address", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		}, wantErr: "listen address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LoggingConfig{Level: "info", Format: "json"})

	logger.NewComponentLogger("provisioner").
		WithRunID("run-1").
		WithNetwork("base-sepolia").
		WithResource("MasterMinter").
		Info("deployed")
	logger.Debug("dropped below level")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	want := map[string]string{
		"component": "provisioner",
		"run_id":    "run-1",
		"network":   "base-sepolia",
		"resource":  "MasterMinter",
		"message":   "deployed",
		"level":     "info",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LoggingConfig{Level: "info", Format: "json"})

	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	if !strings.Contains(buf.String(), "from context") {
		t.Fatalf("context logger did not write to the configured writer: %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() returned nil for an empty context")
	}
}

func TestMetricsRecord(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	m.RecordCall("deploy", "ok")
	m.RecordCall("deploy", "ok")
	m.RecordCall("send", "rejected")
	m.RecordDeployment("MasterMinter", "reused")
	m.RecordPhase("initialize", "already-applied")
	m.RecordWiringStep("removeController", "failed")
	m.RecordRun("succeeded", 3*time.Second)
	m.RecordError("permanent", "CONFIG_ERROR")

	if got := testutil.ToFloat64(m.calls.WithLabelValues("deploy", "ok")); got != 2 {
		t.Errorf("deploy calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("send", "rejected")); got != 1 {
		t.Errorf("rejected sends = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.deployments.WithLabelValues("MasterMinter", "reused")); got != 1 {
		t.Errorf("reused MasterMinter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.phases.WithLabelValues("initialize", "already-applied")); got != 1 {
		t.Errorf("initialize phase = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.wiringSteps.WithLabelValues("removeController", "failed")); got != 1 {
		t.Errorf("wiring failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runsCompleted.WithLabelValues("succeeded")); got != 1 {
		t.Errorf("runs completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.errorsByCode.WithLabelValues("permanent", "CONFIG_ERROR")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "tokenbridge_ledger_calls_total") {
		t.Errorf("metrics endpoint missing ledger_calls_total:\n%s", rec.Body.String())
	}
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	m.RecordCall("deploy", "ok")
	m.RecordRun("failed", time.Second)

	srv, err := m.StartMetricsServer()
	if err != nil || srv != nil {
		t.Fatalf("StartMetricsServer() = %v, %v; want nil, nil", srv, err)
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("disabled handler status = %d, want 404", rec.Code)
	}
}

func TestEventPublisherDelivery(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{Enabled: true})

	var order []string
	ep.Subscribe(func(_ context.Context, ev Event) error {
		order = append(order, "all:"+ev.Type)
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Errorf("event not stamped: %+v", ev)
		}
		if ev.Type == "run.started" && ev.Level != EventLevelInfo {
			t.Errorf("default level = %q, want %q", ev.Level, EventLevelInfo)
		}
		if ev.Type == "run.failed" && ev.Level != EventLevelError {
			t.Errorf("explicit level = %q, want %q", ev.Level, EventLevelError)
		}
		return nil
	}, nil)
	ep.Subscribe(func(_ context.Context, ev Event) error {
		order = append(order, "errors:"+ev.Type)
		return nil
	}, FilterByLevel(EventLevelError))

	ctx := context.Background()
	if err := ep.Publish(ctx, Event{Type: "run.started", RunID: "r1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := ep.Publish(ctx, Event{Type: "run.failed", RunID: "r1", Level: EventLevelError}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []string{"all:run.started", "all:run.failed", "errors:run.failed"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("delivery order = %v, want %v", order, want)
	}
}

func TestEventPublisherErrorsAndFilters(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{Enabled: true})
	sinkErr := errors.New("sink down")

	delivered := 0
	ep.Subscribe(func(context.Context, Event) error { return sinkErr }, nil)
	ep.Subscribe(func(context.Context, Event) error {
		delivered++
		return nil
	}, nil)
	ep.AddFilter(FilterByRunID("r1"))

	err := ep.Publish(context.Background(), Event{Type: "run.started", RunID: "r1"})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Publish() error = %v, want %v", err, sinkErr)
	}
	if delivered != 1 {
		t.Fatalf("second subscriber delivered %d times, want 1", delivered)
	}

	if err := ep.Publish(context.Background(), Event{Type: "run.started", RunID: "r2"}); err != nil {
		t.Fatalf("filtered Publish() error = %v", err)
	}
	if delivered != 1 {
		t.Fatalf("filtered event was delivered")
	}

	disabled := NewEventPublisher(EventsConfig{})
	disabled.Subscribe(func(context.Context, Event) error { return sinkErr }, nil)
	if err := disabled.Publish(context.Background(), Event{Type: "x"}); err != nil {
		t.Fatalf("disabled Publish() error = %v", err)
	}
}

func TestNewTelemetryDisabledTracing(t *testing.T) {
	cfg := DefaultConfig()
	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry() error = %v", err)
	}

	ctx := tel.WithContext(context.Background())
	if FromTelemetryContext(ctx) != tel {
		t.Fatal("FromTelemetryContext() did not return the instance")
	}

	_, span := tel.Tracer.StartCommandSpan(ctx, "deploy", "base-sepolia")
	if span.SpanContext().IsSampled() {
		t.Error("span sampled with tracing disabled")
	}
	span.End()

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
