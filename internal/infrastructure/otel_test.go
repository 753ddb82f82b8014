package infrastructure

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Test with default configuration
	providers, err := InitializeOTel(nil, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)

	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)

	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = providers.Shutdown(ctx)
	assert.NoError(t, err)
}

// TestTraceCorrelation tests trace ID correlation
func TestTraceCorrelation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(ctx, "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)

	expectedTraceID := span.SpanContext().TraceID().String()
	assert.Equal(t, expectedTraceID, traceID)

	ctx = WithTraceID(ctx, traceID)
	retrievedTraceID := GetTraceID(ctx)
	assert.Equal(t, traceID, retrievedTraceID)
}

// TestBusinessMetrics tests business metrics creation
func TestBusinessMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	// HTTP metrics
	assert.NotNil(t, metrics.HTTPRequestsTotal)
	assert.NotNil(t, metrics.HTTPRequestDuration)
	assert.NotNil(t, metrics.HTTPActiveRequests)

	// Operation metrics
	assert.NotNil(t, metrics.OperationExecutionsTotal)
	assert.NotNil(t, metrics.OperationExecutionDuration)
	assert.NotNil(t, metrics.OperationStepsTotal)
	assert.NotNil(t, metrics.OperationActiveOperations)

	// Pipeline metrics
	assert.NotNil(t, metrics.PipelineRunsTotal)
	assert.NotNil(t, metrics.PipelineRunDuration)
	assert.NotNil(t, metrics.PipelineLegsIn)
	assert.NotNil(t, metrics.PipelineRowsOut)

	// Market data metrics
	assert.NotNil(t, metrics.QuoteLookupsTotal)
	assert.NotNil(t, metrics.QuoteCacheHits)
	assert.NotNil(t, metrics.QuoteCacheMisses)
	assert.NotNil(t, metrics.QuoteFallbacks)

	// System metrics
	assert.NotNil(t, metrics.SystemErrors)
	assert.NotNil(t, metrics.SystemUptime)
}

// TestSpanOperations tests span operations and attributes
func TestSpanOperations(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()
	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(ctx, "test-span")
	defer span.End()

	attributes := map[string]interface{}{
		"string_attr": "test_value",
		"int_attr":    42,
		"float_attr":  3.14,
		"bool_attr":   true,
	}

	SetSpanAttributes(ctx, attributes)

	AddSpanEvent(ctx, "test.event", map[string]interface{}{
		"event_data": "test_event_value",
		"timestamp":  time.Now().Unix(),
	})

	testErr := assert.AnError
	RecordError(ctx, testErr)

	assert.True(t, span.IsRecording())
}

// TestRecordPipelineRun verifies run metrics recording does not panic
// with and without metrics configured.
func TestRecordPipelineRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()

	RecordPipelineRun(ctx, metrics, "dashboard", 12, 4, 150*time.Millisecond, true)
	RecordPipelineRun(ctx, metrics, "base", 3, 0, 10*time.Millisecond, false)

	// Nil metrics must be a no-op
	RecordPipelineRun(ctx, nil, "base", 1, 1, time.Millisecond, true)
}

// TestRecordQuoteLookup verifies quote metrics recording
func TestRecordQuoteLookup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()

	RecordQuoteLookup(ctx, metrics, 30*time.Millisecond, false, false, true)
	RecordQuoteLookup(ctx, metrics, time.Millisecond, true, false, true)
	RecordQuoteLookup(ctx, metrics, 45*time.Millisecond, false, true, true)
	RecordQuoteLookup(ctx, metrics, 12*time.Millisecond, false, false, false)

	RecordQuoteLookup(ctx, nil, time.Millisecond, true, false, true)
}

// TestPrometheusEndpoint tests the Prometheus metrics endpoint
func TestPrometheusEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

// TestOTelConfiguration tests different configuration options
func TestOTelConfiguration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name   string
		config *OTelConfig
	}{
		{
			name: "development_config",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "development",
				TraceExporter:  "stdout",
				MetricExporter: "prometheus",
				EnableMetrics:  true,
				EnableTracing:  true,
				SampleRatio:    1.0,
			},
		},
		{
			name: "disabled_tracing",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "none",
				MetricExporter: "prometheus",
				EnableMetrics:  true,
				EnableTracing:  false,
				SampleRatio:    0.0,
			},
		},
		{
			name: "disabled_metrics",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "stdout",
				MetricExporter: "none",
				EnableMetrics:  false,
				EnableTracing:  true,
				SampleRatio:    1.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, logger)
			require.NoError(t, err)
			require.NotNil(t, providers)

			if tt.config.EnableTracing {
				assert.NotNil(t, providers.TracerProvider)
				assert.NotNil(t, providers.Tracer)
			}

			if tt.config.EnableMetrics {
				assert.NotNil(t, providers.MeterProvider)
				assert.NotNil(t, providers.Meter)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err = providers.Shutdown(ctx)
			assert.NoError(t, err)
		})
	}
}

// TestTracePropagation tests trace propagation across contexts
func TestTracePropagation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	tracer := otel.Tracer("propagation-test")

	ctx := context.Background()
	ctx, parentSpan := tracer.Start(ctx, "parent-operation")
	defer parentSpan.End()

	parentTraceID := parentSpan.SpanContext().TraceID().String()

	ctx, childSpan := tracer.Start(ctx, "child-operation")
	defer childSpan.End()

	childTraceID := childSpan.SpanContext().TraceID().String()

	assert.Equal(t, parentTraceID, childTraceID, "Child span should have same trace ID as parent")

	assert.Equal(t, parentSpan.SpanContext().TraceID(), childSpan.SpanContext().TraceID())
	assert.NotEqual(t, parentSpan.SpanContext().SpanID(), childSpan.SpanContext().SpanID())
}

// BenchmarkTraceOperations benchmarks trace operations to validate performance impact
func BenchmarkTraceOperations(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(b, err)
	defer providers.Shutdown(context.Background())

	tracer := otel.Tracer("benchmark")

	b.ResetTimer()
	b.ReportAllocs()

	b.Run("span_creation", func(b *testing.B) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			_, span := tracer.Start(ctx, "benchmark-span")
			span.End()
		}
	})

	b.Run("span_attributes", func(b *testing.B) {
		ctx := context.Background()
		ctx, span := tracer.Start(ctx, "benchmark-span")
		defer span.End()

		attributes := map[string]interface{}{
			"operation": "benchmark",
			"iteration": 0,
			"success":   true,
		}

		for i := 0; i < b.N; i++ {
			attributes["iteration"] = i
			SetSpanAttributes(ctx, attributes)
		}
	})
}

// BenchmarkMetricOperations benchmarks metric operations
func BenchmarkMetricOperations(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(b, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(b, err)

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.Run("counter_increment", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			metrics.HTTPRequestsTotal.Add(ctx, 1)
		}
	})

	b.Run("histogram_record", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			metrics.HTTPRequestDuration.Record(ctx, float64(i)*0.001)
		}
	})
}
