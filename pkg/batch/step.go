package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Step is one stage of a Job.
type Step interface {
	Name() string
	Execute(ctx context.Context) (*StepExecution, error)
}

// ChunkStep reads items, processes them and writes them in transactional
// chunks on a bounded pool of goroutines.
//
// A ChunkStep may be executed more than once, but not concurrently: the
// reader and writer are shared by every execution.
type ChunkStep[I, O any] struct {
	name      string
	reader    ItemReader[I]
	processor ItemProcessor[I, O]
	writer    ItemWriter[O]
	cfg       stepConfig
	tracer    trace.Tracer
	metrics   *stepMetrics
	log       zerolog.Logger
}

var _ Step = (*ChunkStep[int, int])(nil)

// NewChunkStep builds a chunk step. Defaults: chunk size 1000, concurrency
// 10, no transaction.
func NewChunkStep[I, O any](
	name string,
	reader ItemReader[I],
	processor ItemProcessor[I, O],
	writer ItemWriter[O],
	opts ...StepOption,
) (*ChunkStep[I, O], error) {
	cfg := defaultStepConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case name == "":
		return nil, ErrEmptyName
	case reader == nil:
		return nil, ErrNilReader
	case processor == nil:
		return nil, ErrNilProcessor
	case writer == nil:
		return nil, ErrNilWriter
	case cfg.tx == nil:
		return nil, ErrNilTransactor
	case cfg.chunkSize < 1:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, cfg.chunkSize)
	}

	return &ChunkStep[I, O]{
		name:      name,
		reader:    reader,
		processor: processor,
		writer:    writer,
		cfg:       cfg,
		tracer:    cfg.tracer.Tracer(instrumentationName),
		metrics:   newStepMetrics(cfg.meter, name),
		log:       cfg.log.With().Str("step", name).Logger(),
	}, nil
}

// Name returns the step name.
func (s *ChunkStep[I, O]) Name() string { return s.name }

// ChunkSize returns the configured chunk size.
func (s *ChunkStep[I, O]) ChunkSize() int { return s.cfg.chunkSize }

// Concurrency returns the configured worker cap; <= 0 means unlimited.
func (s *ChunkStep[I, O]) Concurrency() int { return s.cfg.concurrency }

type stepCounters struct {
	read, write, filter, commit, rollback atomic.Int64
}

func (c *stepCounters) snapshot(exec *StepExecution) {
	exec.ReadCount = c.read.Load()
	exec.WriteCount = c.write.Load()
	exec.FilterCount = c.filter.Load()
	exec.CommitCount = c.commit.Load()
	exec.RollbackCount = c.rollback.Load()
}

// Execute runs the step to completion or to its first failure. The returned
// execution is always non-nil; its Status is COMPLETED or FAILED.
func (s *ChunkStep[I, O]) Execute(ctx context.Context) (*StepExecution, error) {
	exec := &StepExecution{StepName: s.name, Status: StatusNotStarted}

	ctx, span := s.tracer.Start(ctx, "batch.step",
		trace.WithAttributes(
			attribute.String("batch.step", s.name),
			attribute.Int("batch.chunk_size", s.cfg.chunkSize),
			attribute.Int("batch.concurrency", s.cfg.concurrency),
		))
	defer span.End()

	exec.Status = StatusRunning
	exec.StartedAt = time.Now().UTC()
	s.log.Info().
		Int("chunk_size", s.cfg.chunkSize).
		Int("concurrency", s.cfg.concurrency).
		Msg("step started")

	var counters stepCounters
	err := s.run(ctx, &counters)

	counters.snapshot(exec)
	exec.EndedAt = time.Now().UTC()
	if err != nil {
		exec.Status = StatusFailed
		exec.ExitMessage = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error().Err(err).
			Int64("read", exec.ReadCount).
			Int64("written", exec.WriteCount).
			Int64("commits", exec.CommitCount).
			Int64("rollbacks", exec.RollbackCount).
			Msg("step failed")
		return exec, err
	}

	exec.Status = StatusCompleted
	s.log.Info().
		Int64("read", exec.ReadCount).
		Int64("written", exec.WriteCount).
		Int64("commits", exec.CommitCount).
		Dur("duration", exec.Duration()).
		Msg("step completed")
	return exec, nil
}

func (s *ChunkStep[I, O]) run(ctx context.Context, counters *stepCounters) (err error) {
	if err := openStream(ctx, s.reader); err != nil {
		return &StepError{Step: s.name, Err: fmt.Errorf("open reader: %w", err)}
	}
	defer func() {
		if cerr := closeStream(s.reader); cerr != nil && err == nil {
			err = &StepError{Step: s.name, Err: fmt.Errorf("close reader: %w", cerr)}
		}
	}()
	if err := openStream(ctx, s.writer); err != nil {
		return &StepError{Step: s.name, Err: fmt.Errorf("open writer: %w", err)}
	}
	defer func() {
		if cerr := closeStream(s.writer); cerr != nil && err == nil {
			err = &StepError{Step: s.name, Err: fmt.Errorf("close writer: %w", cerr)}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.concurrency > 0 {
		g.SetLimit(s.cfg.concurrency)
	}

	var readErr error
	chunks := 0
	for gctx.Err() == nil {
		items, rerr := s.readChunk(gctx, counters)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			// A chunk that could not be read in full is never written.
			if gctx.Err() == nil {
				readErr = &StepError{Step: s.name, Chunk: chunks + 1, Err: fmt.Errorf("read: %w", rerr)}
			}
			break
		}
		if len(items) > 0 {
			chunks++
			number := chunks
			g.Go(func() error {
				// Chunks queued behind a failure are dropped, chunks already
				// running are allowed to commit.
				if gctx.Err() != nil {
					return nil
				}
				return s.runChunk(ctx, counters, number, items)
			})
		}
		if rerr != nil {
			break
		}
	}

	werr := g.Wait()
	switch {
	case werr != nil && readErr != nil:
		return errors.Join(werr, readErr)
	case werr != nil:
		return werr
	case readErr != nil:
		return readErr
	}
	// The caller's context may have ended the loop without any chunk failing.
	if cerr := ctx.Err(); cerr != nil {
		return &StepError{Step: s.name, Err: cerr}
	}
	return nil
}

// readChunk buffers up to chunkSize items. It returns io.EOF together with
// the final, possibly partial, chunk.
func (s *ChunkStep[I, O]) readChunk(ctx context.Context, counters *stepCounters) ([]I, error) {
	items := make([]I, 0, s.cfg.chunkSize)
	for len(items) < s.cfg.chunkSize {
		item, err := s.reader.Read(ctx)
		if err != nil {
			return items, err
		}
		items = append(items, item)
		counters.read.Add(1)
		s.metrics.addRead(ctx, 1)
	}
	return items, nil
}

func (s *ChunkStep[I, O]) runChunk(ctx context.Context, counters *stepCounters, number int, items []I) error {
	info := ChunkInfo{Step: s.name, Number: number, Size: len(items)}
	ctx, span := s.tracer.Start(ctx, "batch.chunk",
		trace.WithAttributes(
			attribute.String("batch.step", s.name),
			attribute.Int("batch.chunk", number),
			attribute.Int("batch.chunk.size", len(items)),
		))
	defer span.End()

	for _, l := range s.cfg.listeners {
		l.BeforeChunk(ctx, info)
	}

	var written, filtered int
	err := s.cfg.tx.WithinTx(ctx, func(txCtx context.Context) error {
		written, filtered = 0, 0
		out := make([]O, 0, len(items))
		for _, item := range items {
			o, err := s.processor(txCtx, item)
			if errors.Is(err, ErrSkipItem) {
				filtered++
				continue
			}
			if err != nil {
				return fmt.Errorf("process: %w", err)
			}
			out = append(out, o)
		}
		if len(out) == 0 {
			return nil
		}
		if err := s.writer.Write(txCtx, out); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		written = len(out)
		return nil
	})
	if err != nil {
		counters.rollback.Add(1)
		s.metrics.rollback(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		for _, l := range s.cfg.listeners {
			l.AfterChunkError(ctx, info, err)
		}
		s.log.Warn().Err(err).Int("chunk", number).Int("size", len(items)).Msg("chunk rolled back")
		return &StepError{Step: s.name, Chunk: number, Err: err}
	}

	counters.commit.Add(1)
	counters.write.Add(int64(written))
	counters.filter.Add(int64(filtered))
	s.metrics.commit(ctx, int64(written))
	for _, l := range s.cfg.listeners {
		l.AfterChunk(ctx, info, written)
	}
	s.log.Debug().Int("chunk", number).Int("size", len(items)).Int("written", written).Msg("chunk committed")
	return nil
}

func openStream(ctx context.Context, v any) error {
	if st, ok := v.(ItemStream); ok {
		return st.Open(ctx)
	}
	return nil
}

func closeStream(v any) error {
	if st, ok := v.(ItemStream); ok {
		return st.Close()
	}
	return nil
}

// Process runs reader -> processor -> writer as a single anonymous step.
func Process[I, O any](
	ctx context.Context,
	reader ItemReader[I],
	processor ItemProcessor[I, O],
	writer ItemWriter[O],
	opts ...StepOption,
) (*StepExecution, error) {
	step, err := NewChunkStep("process", reader, processor, writer, opts...)
	if err != nil {
		return nil, err
	}
	return step.Execute(ctx)
}
