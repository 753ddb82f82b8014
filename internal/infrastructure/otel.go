package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "opsunify"
	ServiceVersion = "v1.0.0"
	MeterName      = "opsunify"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "otlp", "none"
	MetricExporter string // "prometheus", "stdout", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
	PrometheusPort string
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout", // Use stdout for development
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0, // Sample all traces in development
		PrometheusPort: "9090",
	}
}

// InitializeOTel initializes OpenTelemetry with comprehensive observability
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// Set up global propagators for trace context
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		// No exporter - tracing disabled
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// Each provider gets its own registry so a second initialization,
		// as in tests, never collides with this one's collectors.
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		otel.SetMeterProvider(mp)

	case "none":
		// No exporter - metrics disabled
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	// HTTP metrics
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	// Operations metrics
	operationExecutionsTotal, err := meter.Int64Counter(
		"operation_executions_total",
		metric.WithDescription("Total number of operation executions"),
	)
	if err != nil {
		return nil, err
	}

	operationExecutionDuration, err := meter.Float64Histogram(
		"operation_execution_duration_seconds",
		metric.WithDescription("Operation execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	operationStepsTotal, err := meter.Int64Counter(
		"operation_steps_total",
		metric.WithDescription("Total number of operation steps executed"),
	)
	if err != nil {
		return nil, err
	}

	operationStepDuration, err := meter.Float64Histogram(
		"operation_step_duration_seconds",
		metric.WithDescription("Operation step execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	operationActiveOperations, err := meter.Int64UpDownCounter(
		"operation_active_operations",
		metric.WithDescription("Number of active operations"),
	)
	if err != nil {
		return nil, err
	}

	operationErrors, err := meter.Int64Counter(
		"operation_errors_total",
		metric.WithDescription("Total number of operation errors"),
	)
	if err != nil {
		return nil, err
	}

	operationCancellations, err := meter.Int64Counter(
		"operation_cancellations_total",
		metric.WithDescription("Total number of operation cancellations"),
	)
	if err != nil {
		return nil, err
	}

	// Unification pipeline metrics
	pipelineRunsTotal, err := meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Total number of unification pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	pipelineRunDuration, err := meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("Unification pipeline run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	pipelineLegsIn, err := meter.Int64Counter(
		"pipeline_legs_in_total",
		metric.WithDescription("Total number of operation legs consumed by pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	pipelineRowsOut, err := meter.Int64Counter(
		"pipeline_rows_out_total",
		metric.WithDescription("Total number of unified result rows produced"),
	)
	if err != nil {
		return nil, err
	}

	// Market data metrics
	quoteLookupsTotal, err := meter.Int64Counter(
		"quote_lookups_total",
		metric.WithDescription("Total number of market quote lookups"),
	)
	if err != nil {
		return nil, err
	}

	quoteLookupDuration, err := meter.Float64Histogram(
		"quote_lookup_duration_seconds",
		metric.WithDescription("Market quote lookup duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	quoteCacheHits, err := meter.Int64Counter(
		"quote_cache_hits_total",
		metric.WithDescription("Total number of quote cache hits"),
	)
	if err != nil {
		return nil, err
	}

	quoteCacheMisses, err := meter.Int64Counter(
		"quote_cache_misses_total",
		metric.WithDescription("Total number of quote cache misses"),
	)
	if err != nil {
		return nil, err
	}

	quoteFallbacks, err := meter.Int64Counter(
		"quote_suffix_fallbacks_total",
		metric.WithDescription("Total number of lookups resolved via the local exchange suffix"),
	)
	if err != nil {
		return nil, err
	}

	// System metrics
	systemErrors, err := meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
	)
	if err != nil {
		return nil, err
	}

	systemUptime, err := meter.Float64UpDownCounter(
		"system_uptime_seconds",
		metric.WithDescription("System uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,

		OperationExecutionsTotal:   operationExecutionsTotal,
		OperationExecutionDuration: operationExecutionDuration,
		OperationStepsTotal:        operationStepsTotal,
		OperationStepDuration:      operationStepDuration,
		OperationActiveOperations:  operationActiveOperations,
		OperationErrors:            operationErrors,
		OperationCancellations:     operationCancellations,

		PipelineRunsTotal:   pipelineRunsTotal,
		PipelineRunDuration: pipelineRunDuration,
		PipelineLegsIn:      pipelineLegsIn,
		PipelineRowsOut:     pipelineRowsOut,

		QuoteLookupsTotal:   quoteLookupsTotal,
		QuoteLookupDuration: quoteLookupDuration,
		QuoteCacheHits:      quoteCacheHits,
		QuoteCacheMisses:    quoteCacheMisses,
		QuoteFallbacks:      quoteFallbacks,

		SystemErrors: systemErrors,
		SystemUptime: systemUptime,
	}, nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Operations metrics
	OperationExecutionsTotal   metric.Int64Counter
	OperationExecutionDuration metric.Float64Histogram
	OperationStepsTotal        metric.Int64Counter
	OperationStepDuration      metric.Float64Histogram
	OperationActiveOperations  metric.Int64UpDownCounter
	OperationErrors            metric.Int64Counter
	OperationCancellations     metric.Int64Counter

	// Unification pipeline metrics
	PipelineRunsTotal   metric.Int64Counter
	PipelineRunDuration metric.Float64Histogram
	PipelineLegsIn      metric.Int64Counter
	PipelineRowsOut     metric.Int64Counter

	// Market data metrics
	QuoteLookupsTotal   metric.Int64Counter
	QuoteLookupDuration metric.Float64Histogram
	QuoteCacheHits      metric.Int64Counter
	QuoteCacheMisses    metric.Int64Counter
	QuoteFallbacks      metric.Int64Counter

	// System metrics
	SystemErrors metric.Int64Counter
	SystemUptime metric.Float64UpDownCounter
}

// Shutdown gracefully shuts down OpenTelemetry providers
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

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
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

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}

// RecordPipelineRun records metrics for a completed unification run
func RecordPipelineRun(ctx context.Context, metrics *BusinessMetrics, variant string, legsIn, rowsOut int, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("variant", variant),
	}

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}

	metrics.PipelineRunsTotal.Add(ctx, 1, metric.WithAttributes(append(attrs, statusAttr)...))
	metrics.PipelineRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(append(attrs, statusAttr)...))

	if success {
		metrics.PipelineLegsIn.Add(ctx, int64(legsIn), metric.WithAttributes(attrs...))
		metrics.PipelineRowsOut.Add(ctx, int64(rowsOut), metric.WithAttributes(attrs...))
	}
}

// RecordQuoteLookup records metrics for a market quote lookup
func RecordQuoteLookup(ctx context.Context, metrics *BusinessMetrics, duration time.Duration, cacheHit, fallback, success bool) {
	if metrics == nil {
		return
	}

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}

	metrics.QuoteLookupsTotal.Add(ctx, 1, metric.WithAttributes(statusAttr))
	metrics.QuoteLookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(statusAttr))

	if cacheHit {
		metrics.QuoteCacheHits.Add(ctx, 1)
	} else {
		metrics.QuoteCacheMisses.Add(ctx, 1)
	}

	if fallback {
		metrics.QuoteFallbacks.Add(ctx, 1)
	}
}
