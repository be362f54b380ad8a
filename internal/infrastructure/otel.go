package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"sovpanel/internal/config"
)

const (
	ServiceName = "sovpanel"
	MeterName   = "sovpanel"
)

// OTelProviders holds the OpenTelemetry providers of one process
type OTelProviders struct {
	// TracerProvider is nil when tracing is off
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	// Registry is private to the process; nothing is served over HTTP
	Registry *promclient.Registry
	Tracer   trace.Tracer
	Meter    metric.Meter
	Logger   *slog.Logger
}

// InitializeOTel sets up tracing and metrics. Spans go to traceOut when
// cfg.Tracing is "stdout"; metrics are always collected into a private
// Prometheus registry.
func InitializeOTel(cfg config.TelemetryConfig, version string, traceOut io.Writer, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	)

	providers := &OTelProviders{Logger: logger}

	switch cfg.Tracing {
	case "stdout":
		if traceOut == nil {
			traceOut = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(version))
	case "none", "":
		providers.Tracer = noop.NewTracerProvider().Tracer(MeterName)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Tracing)
	}

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	providers.Registry = registry
	providers.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	providers.Meter = providers.MeterProvider.Meter(MeterName, metric.WithInstrumentationVersion(version))

	logger.Debug("OpenTelemetry initialized",
		slog.String("tracing", cfg.Tracing),
		slog.String("metrics_file", cfg.MetricsFile))
	return providers, nil
}

// WriteMetricsTextfile writes every collected metric to path in the
// Prometheus text format, for the node exporter textfile collector.
func (p *OTelProviders) WriteMetricsTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := promclient.WriteToTextfile(path, p.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes pending spans and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PipelineMetrics are the counters and histograms of a pipeline run
type PipelineMetrics struct {
	RunsTotal         metric.Int64Counter
	StepsTotal        metric.Int64Counter
	StepDuration      metric.Float64Histogram
	RowsLoaded        metric.Int64Counter
	RowsDropped       metric.Int64Counter
	MergesTotal       metric.Int64Counter
	PanelRows         metric.Int64Gauge
	WorldBankRequests metric.Int64Counter
	WorldBankFailures metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var m PipelineMetrics
	var err error
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}

	m.RunsTotal = counter("sovpanel_runs_total", "Pipeline runs by status")
	m.StepsTotal = counter("sovpanel_steps_total", "Pipeline steps by step and status")
	m.RowsLoaded = counter("sovpanel_rows_loaded_total", "Observations kept per source")
	m.RowsDropped = counter("sovpanel_rows_dropped_total", "Observations dropped per source and reason")
	m.MergesTotal = counter("sovpanel_merges_total", "Variables merged into the panel")
	m.WorldBankRequests = counter("sovpanel_worldbank_requests_total", "HTTP requests sent to the World Bank API")
	m.WorldBankFailures = counter("sovpanel_worldbank_failures_total", "Country and indicator pairs that could not be fetched")
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	m.StepDuration, err = meter.Float64Histogram("sovpanel_step_duration_seconds",
		metric.WithDescription("Pipeline step duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	m.PanelRows, err = meter.Int64Gauge("sovpanel_panel_rows",
		metric.WithDescription("Rows in the merged panel"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge: %w", err)
	}
	return &m, nil
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
