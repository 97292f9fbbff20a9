package compute

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"echo-server/internal/infrastructure/observability"
	apperrors "echo-server/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		MatrixSize: 10,
		BrewCups:   2,
	}
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *observability.Collector) {
	t.Helper()
	metrics := observability.NewCollector("test")
	return NewPipeline(testConfig(), zap.NewNop(), metrics, opts...), metrics
}

func TestPipelineRun(t *testing.T) {
	p, metrics := newTestPipeline(t)

	result, err := p.Run(context.Background(), NewParams(10, 10))
	require.NoError(t, err)

	assert.Equal(t, 4, result.PrimesCount)
	assert.Equal(t, 9, result.FibonacciIndex)
	assert.Equal(t, "34", result.FibonacciValue.String())
	assert.Equal(t, "Computed 4 primes (limit: 10), fibonacci[9] = 34", result.Summary)
	assert.Equal(t, BackgroundCompleted, result.Background.Status)
	assert.Equal(t, "brew", result.Background.Task)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ComputeRuns.WithLabelValues("ok")))
}

func TestPipelineBoundaries(t *testing.T) {
	p, _ := newTestPipeline(t)

	result, err := p.Run(context.Background(), NewParams(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, result.PrimesCount)
	assert.Equal(t, "1", result.FibonacciValue.String())

	result, err = p.Run(context.Background(), NewParams(10000, 100))
	require.NoError(t, err)
	assert.Equal(t, 1229, result.PrimesCount)
	assert.Equal(t, "218922995834555169026", result.FibonacciValue.String())
}

func TestPipelineValidationSkipsBackground(t *testing.T) {
	var started atomic.Bool
	p, metrics := newTestPipeline(t, WithBackground(func(ctx context.Context) error {
		started.Store(true)
		return nil
	}))

	for _, params := range []Params{NewParams(1, 10), NewParams(10001, 10), NewParams(10, 101), {}} {
		result, err := p.Run(context.Background(), params)
		assert.Nil(t, result)
		assert.True(t, apperrors.IsValidation(err))
	}

	assert.False(t, started.Load(), "background task must not start for invalid input")
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.ComputeRuns.WithLabelValues("invalid")))
}

func TestPipelineIsolatesBackgroundFailure(t *testing.T) {
	tests := []struct {
		name string
		fn   BackgroundFunc
	}{
		{"error", func(ctx context.Context) error { return errors.New("kettle empty") }},
		{"panic", func(ctx context.Context) error { panic("kettle exploded") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, metrics := newTestPipeline(t, WithBackground(tt.fn))

			result, err := p.Run(context.Background(), NewParams(10, 10))
			require.NoError(t, err)

			assert.Equal(t, 4, result.PrimesCount)
			assert.Equal(t, "34", result.FibonacciValue.String())
			assert.Equal(t, BackgroundFailed, result.Background.Status)
			assert.Contains(t, result.Background.Error, "kettle")
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BackgroundFailures))
		})
	}
}

func TestPipelineJoinsBackground(t *testing.T) {
	var finished atomic.Bool
	p, _ := newTestPipeline(t, WithBackground(func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}))

	_, err := p.Run(context.Background(), NewParams(10, 10))
	require.NoError(t, err)
	assert.True(t, finished.Load(), "Run returned before the background task finished")
}

func TestPipelineTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.SettleDelay = time.Hour

	p := NewPipeline(cfg, zap.NewNop(), nil)

	start := time.Now()
	_, err := p.Run(context.Background(), NewParams(10, 10))
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPipelineDefaultBrew(t *testing.T) {
	cfg := testConfig()
	cfg.BoilDelay = 5 * time.Millisecond
	cfg.CupDelay = 5 * time.Millisecond

	p := NewPipeline(cfg, zap.NewNop(), nil)
	result, err := p.Run(context.Background(), NewParams(10, 10))
	require.NoError(t, err)
	assert.Equal(t, BackgroundCompleted, result.Background.Status)
	assert.GreaterOrEqual(t, result.Background.DurationMs, int64(0))
}

func TestPipelineSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	p, _ := newTestPipeline(t, WithTracer(provider.Tracer("test")))
	_, err := p.Run(context.Background(), NewParams(10, 10))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, s := range recorder.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{
		"compute.pipeline",
		"matrix_computation",
		"prime_computation",
		"fibonacci_computation",
		"settle",
		"boil_water",
		"prepare_cups",
	} {
		assert.True(t, names[want], "missing span %s", want)
	}
}
