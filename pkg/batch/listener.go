package batch

import "context"

// ChunkInfo identifies a chunk within a step execution.
type ChunkInfo struct {
	Step   string
	Number int
	Size   int
}

// ChunkListener observes chunk boundaries. Callbacks run on the worker
// goroutine that owns the chunk and must be safe for concurrent use.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, chunk ChunkInfo)
	AfterChunk(ctx context.Context, chunk ChunkInfo, written int)
	AfterChunkError(ctx context.Context, chunk ChunkInfo, err error)
}
