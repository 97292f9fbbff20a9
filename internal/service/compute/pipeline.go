// Package compute implements the synthetic workload behind /expensive: a
// fixed sequence of CPU-bound steps with a background workflow running
// alongside and joined before the result is returned.
package compute

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"echo-server/internal/infrastructure/concurrency"
	"echo-server/internal/infrastructure/observability"
	apperrors "echo-server/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config tunes the pipeline.
type Config struct {
	// Timeout bounds a whole run; 0 disables it.
	Timeout     time.Duration
	MatrixSize  int
	SettleDelay time.Duration

	BrewCups  int
	BoilDelay time.Duration
	CupDelay  time.Duration
}

// BackgroundFunc is the workflow run alongside the sequential steps.
type BackgroundFunc func(ctx context.Context) error

// Result is the outcome of one run.
type Result struct {
	PrimeLimit      int              `json:"prime_limit"`
	FibLength       int              `json:"fib_length"`
	PrimesCount     int              `json:"primes_count"`
	FibonacciIndex  int              `json:"fibonacci_index"`
	FibonacciValue  *big.Int         `json:"fibonacci_value"`
	Summary         string           `json:"summary"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	Background      BackgroundReport `json:"background"`
}

// BackgroundReport describes how the background workflow ended. Its failure
// never changes the rest of the Result.
type BackgroundReport struct {
	Task       string `json:"task"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

const (
	BackgroundCompleted = "completed"
	BackgroundFailed    = "failed"
)

// Pipeline runs validated computations.
type Pipeline struct {
	config     Config
	validator  *Validator
	logger     *zap.Logger
	metrics    *observability.Collector
	tracer     trace.Tracer
	background BackgroundFunc
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithTracer sets the tracer used for step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithBackground replaces the brew workflow.
func WithBackground(fn BackgroundFunc) Option {
	return func(p *Pipeline) {
		p.background = fn
	}
}

// NewPipeline creates a pipeline. metrics may be nil.
func NewPipeline(config Config, logger *zap.Logger, metrics *observability.Collector, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:    config,
		validator: NewValidator(),
		logger:    logger.With(zap.String("component", "compute")),
		metrics:   metrics,
		tracer:    otel.Tracer("echo-server/compute"),
	}
	p.background = p.brew
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run validates params, then runs matrix, primes, fibonacci and settle steps
// in order while the background workflow runs concurrently. The background
// workflow is always joined before Run returns.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Result, error) {
	if err := p.validator.Validate(params); err != nil {
		p.countRun("invalid")
		return nil, err
	}
	primeLimit, fibLength := *params.PrimeLimit, *params.FibLength

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "compute.pipeline", trace.WithAttributes(
		attribute.Int("compute.prime_limit", primeLimit),
		attribute.Int("compute.fib_length", fibLength),
	))
	defer span.End()

	logger := p.logger.With(zap.Int("prime_limit", primeLimit), zap.Int("fib_length", fibLength))
	logger.Info("Starting expensive computation pipeline")
	start := time.Now()

	task := concurrency.Go(ctx, "brew", p.background)

	primes, fib, err := p.runSteps(ctx, primeLimit, fibLength)
	report := p.join(ctx, task, logger)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			p.countRun("timeout")
			return nil, apperrors.NewTimeout("expensive computation", err)
		}
		p.countRun("error")
		return nil, apperrors.Wrap(err, "expensive computation")
	}

	fibIndex := fibLength - 1
	fibValue := Term(fib, fibIndex)
	result := &Result{
		PrimeLimit:      primeLimit,
		FibLength:       fibLength,
		PrimesCount:     len(primes),
		FibonacciIndex:  fibIndex,
		FibonacciValue:  fibValue,
		Summary:         Summary(len(primes), primeLimit, fibIndex, fibValue),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Background:      report,
	}

	span.SetAttributes(attribute.Int("compute.primes_count", result.PrimesCount))
	span.SetStatus(codes.Ok, "")
	p.countRun("ok")
	logger.Info("Expensive computation completed",
		zap.String("result", result.Summary),
		zap.Int64("execution_time_ms", result.ExecutionTimeMs),
	)
	return result, nil
}

// Summary formats the human readable result line.
func Summary(primesCount, primeLimit, fibIndex int, fibValue *big.Int) string {
	return fmt.Sprintf("Computed %d primes (limit: %d), fibonacci[%d] = %s", primesCount, primeLimit, fibIndex, fibValue.String())
}

func (p *Pipeline) runSteps(ctx context.Context, primeLimit, fibLength int) ([]int, []*big.Int, error) {
	var (
		primes []int
		fib    []*big.Int
	)

	err := p.step(ctx, "matrix_computation", func(ctx context.Context) error {
		_, err := MatrixMultiply(ctx, p.config.MatrixSize)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	err = p.step(ctx, "prime_computation", func(ctx context.Context) error {
		var err error
		primes, err = Primes(ctx, primeLimit)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("count", len(primes)))
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	err = p.step(ctx, "fibonacci_computation", func(ctx context.Context) error {
		fib = Fibonacci(fibLength)
		return ctx.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	err = p.step(ctx, "settle", func(ctx context.Context) error {
		return concurrency.Sleep(ctx, p.config.SettleDelay)
	})
	if err != nil {
		return nil, nil, err
	}

	return primes, fib, nil
}

// step runs fn in its own span and records its duration.
func (p *Pipeline) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if p.metrics != nil {
		p.metrics.ComputeStepSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// join waits for the background task and absorbs its failure.
func (p *Pipeline) join(ctx context.Context, task *concurrency.Task, logger *zap.Logger) BackgroundReport {
	err := task.Wait()
	report := BackgroundReport{
		Task:       task.Name(),
		Status:     BackgroundCompleted,
		DurationMs: task.Duration().Milliseconds(),
	}
	if err == nil {
		return report
	}

	bgErr := apperrors.NewBackgroundTask(task.Name(), err)
	report.Status = BackgroundFailed
	report.Error = err.Error()

	fields := []zap.Field{zap.Error(bgErr)}
	if stack := task.Stack(); len(stack) > 0 {
		fields = append(fields, zap.ByteString("stack", stack))
	}
	logger.Warn("Background task failed", fields...)
	trace.SpanFromContext(ctx).AddEvent("background task failed", trace.WithAttributes(
		attribute.String("task", task.Name()),
		attribute.String("error", err.Error()),
	))
	if p.metrics != nil {
		p.metrics.BackgroundFailures.Inc()
	}
	return report
}

// brew boils water, then prepares the configured number of cups.
func (p *Pipeline) brew(ctx context.Context) error {
	err := p.step(ctx, "boil_water", func(ctx context.Context) error {
		p.logger.Debug("Boiling water")
		return concurrency.Sleep(ctx, p.config.BoilDelay)
	})
	if err != nil {
		return fmt.Errorf("boil water: %w", err)
	}

	return p.step(ctx, "prepare_cups", func(ctx context.Context) error {
		for i := 1; i <= p.config.BrewCups; i++ {
			if err := concurrency.Sleep(ctx, p.config.CupDelay); err != nil {
				return fmt.Errorf("prepare cup %d: %w", i, err)
			}
			p.logger.Debug("Prepared cup", zap.Int("cup", i), zap.Int("cups", p.config.BrewCups))
		}
		return nil
	})
}

func (p *Pipeline) countRun(outcome string) {
	if p.metrics != nil {
		p.metrics.ComputeRuns.WithLabelValues(outcome).Inc()
	}
}
