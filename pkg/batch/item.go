package batch

import (
	"context"
	"io"
	"sync"
)

// ItemReader yields items one at a time and returns io.EOF after the last one.
// Readers used by a ChunkStep are only called from the dispatching goroutine.
type ItemReader[T any] interface {
	Read(ctx context.Context) (T, error)
}

// ItemProcessor maps one input item to one output item.
type ItemProcessor[I, O any] func(ctx context.Context, item I) (O, error)

// ItemWriter persists a whole chunk. The context carries the chunk's
// transaction when the step has a Transactor.
type ItemWriter[T any] interface {
	Write(ctx context.Context, items []T) error
}

// ItemStream is implemented by readers and writers that hold resources for
// the duration of a step.
type ItemStream interface {
	Open(ctx context.Context) error
	Close() error
}

// ItemWriterFunc adapts a function to ItemWriter.
type ItemWriterFunc[T any] func(ctx context.Context, items []T) error

func (f ItemWriterFunc[T]) Write(ctx context.Context, items []T) error { return f(ctx, items) }

// Identity is a processor that passes items through unchanged.
func Identity[T any](_ context.Context, item T) (T, error) { return item, nil }

// SliceReader reads items from an in-memory slice.
type SliceReader[T any] struct {
	mu    sync.Mutex
	items []T
	pos   int
}

// NewSliceReader returns a reader over items.
func NewSliceReader[T any](items []T) *SliceReader[T] {
	return &SliceReader[T]{items: items}
}

func (r *SliceReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.items) {
		return zero, io.EOF
	}
	item := r.items[r.pos]
	r.pos++
	return item, nil
}

// Transactor scopes a chunk's processing and writing in one transaction.
// WithinTx must commit when fn returns nil and roll back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactorFunc adapts a function to Transactor.
type TransactorFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TransactorFunc) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoTx runs fn without any transaction.
var NoTx Transactor = TransactorFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
