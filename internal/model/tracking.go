package model

import "time"

// JobProgress is a live view of a running import, fed by chunk callbacks.
type JobProgress struct {
	ExecutionID     string     `json:"execution_id"`
	StartTime       time.Time  `json:"start_time"`
	LastUpdate      time.Time  `json:"last_update"`
	ChunksStarted   int64      `json:"chunks_started"`
	ChunksCommitted int64      `json:"chunks_committed"`
	ChunksFailed    int64      `json:"chunks_failed"`
	ItemsWritten    int64      `json:"items_written"`
	ThroughputRPS   float64    `json:"throughput_rps"`
	LastError       string     `json:"last_error,omitempty"`
	Done            bool       `json:"done"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}
