package batch

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultChunkSize is the number of items committed per transaction.
	DefaultChunkSize = 1000
	// DefaultConcurrency caps the number of chunks executing at once.
	DefaultConcurrency = 10

	instrumentationName = "go-student-batch/pkg/batch"
)

type stepConfig struct {
	chunkSize   int
	concurrency int
	tx          Transactor
	listeners   []ChunkListener
	log         zerolog.Logger
	tracer      trace.TracerProvider
	meter       metric.MeterProvider
}

func defaultStepConfig() stepConfig {
	return stepConfig{
		chunkSize:   DefaultChunkSize,
		concurrency: DefaultConcurrency,
		tx:          NoTx,
		log:         zerolog.Nop(),
		tracer:      otel.GetTracerProvider(),
		meter:       otel.GetMeterProvider(),
	}
}

// StepOption configures a ChunkStep.
type StepOption func(*stepConfig)

// WithChunkSize sets how many items make up one chunk.
func WithChunkSize(n int) StepOption {
	return func(c *stepConfig) { c.chunkSize = n }
}

// WithConcurrency caps the number of chunks in flight. n <= 0 removes the cap.
func WithConcurrency(n int) StepOption {
	return func(c *stepConfig) { c.concurrency = n }
}

// WithTransactor sets the per-chunk transaction scope.
func WithTransactor(tx Transactor) StepOption {
	return func(c *stepConfig) { c.tx = tx }
}

// WithListener registers chunk lifecycle callbacks.
func WithListener(l ChunkListener) StepOption {
	return func(c *stepConfig) { c.listeners = append(c.listeners, l) }
}

// WithLogger sets the step logger.
func WithLogger(log zerolog.Logger) StepOption {
	return func(c *stepConfig) { c.log = log }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) StepOption {
	return func(c *stepConfig) { c.tracer = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) StepOption {
	return func(c *stepConfig) { c.meter = mp }
}
