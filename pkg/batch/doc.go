// Package batch runs chunk-oriented read/process/write pipelines.
//
// A ChunkStep pulls items from an ItemReader, buffers them until the chunk
// size is reached, then hands the chunk to a bounded worker pool. Each worker
// processes and writes its chunk inside a single Transactor scope, so a chunk
// either commits as a whole or rolls back as a whole. Chunks are independent
// and may commit in any order.
//
// A Job runs one or more steps in sequence and reports a terminal Status.
// When a JobRepository is configured the job execution, its step executions
// and any failure are recorded there.
//
//	step, err := batch.NewChunkStep("csvImport", reader, processor, writer,
//	    batch.WithChunkSize(1000),
//	    batch.WithConcurrency(10),
//	    batch.WithTransactor(db),
//	)
//	job, err := batch.NewJob("importStudents", []batch.Step{step})
//	exec, err := job.Run(ctx, nil)
package batch
