package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go-student-batch/internal/logger"
	"go-student-batch/internal/model"
	"go-student-batch/pkg/batch"
)

// progressEvery controls how often committed chunks are logged at info.
const progressEvery = 10

// Tracker follows a running import through chunk callbacks.
type Tracker struct {
	log   *logger.Logger
	start time.Time

	started   atomic.Int64
	committed atomic.Int64
	failed    atomic.Int64
	written   atomic.Int64

	mu          sync.RWMutex
	executionID string
	lastUpdate  time.Time
	lastError   string
	end         *time.Time
}

var _ batch.ChunkListener = (*Tracker)(nil)

func NewTracker(log *logger.Logger) *Tracker {
	now := time.Now().UTC()
	return &Tracker{log: log.WithComponent("tracker"), start: now, lastUpdate: now}
}

// Bind attaches the execution id once the job has been started.
func (t *Tracker) Bind(executionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executionID = executionID
	t.log = t.log.WithFields(map[string]interface{}{logger.FieldExecutionID: executionID})
}

func (t *Tracker) BeforeChunk(_ context.Context, _ batch.ChunkInfo) {
	t.started.Add(1)
	t.touch()
}

func (t *Tracker) AfterChunk(_ context.Context, chunk batch.ChunkInfo, written int) {
	n := t.committed.Add(1)
	total := t.written.Add(int64(written))
	t.touch()

	if n%progressEvery == 0 {
		t.logger().Info("import progress", map[string]interface{}{
			"chunks_committed": n,
			"items_written":    total,
			"last_chunk":       chunk.Number,
		})
	}
}

func (t *Tracker) AfterChunkError(_ context.Context, chunk batch.ChunkInfo, err error) {
	t.failed.Add(1)
	t.mu.Lock()
	t.lastError = err.Error()
	t.lastUpdate = time.Now().UTC()
	t.mu.Unlock()

	t.logger().Error("chunk failed", map[string]interface{}{
		"chunk": chunk.Number,
		"size":  chunk.Size,
		"error": err.Error(),
	})
}

// Finish marks the import as done.
func (t *Tracker) Finish() {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.end = &now
	t.lastUpdate = now
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() model.JobProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p := model.JobProgress{
		ExecutionID:     t.executionID,
		StartTime:       t.start,
		LastUpdate:      t.lastUpdate,
		ChunksStarted:   t.started.Load(),
		ChunksCommitted: t.committed.Load(),
		ChunksFailed:    t.failed.Load(),
		ItemsWritten:    t.written.Load(),
		LastError:       t.lastError,
		Done:            t.end != nil,
		EndTime:         t.end,
	}

	end := time.Now().UTC()
	if t.end != nil {
		end = *t.end
	}
	if elapsed := end.Sub(t.start).Seconds(); elapsed > 0 {
		p.ThroughputRPS = float64(p.ItemsWritten) / elapsed
	}
	return p
}

func (t *Tracker) touch() {
	t.mu.Lock()
	t.lastUpdate = time.Now().UTC()
	t.mu.Unlock()
}

func (t *Tracker) logger() *logger.Logger {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.log
}
