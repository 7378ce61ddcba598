package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"go-student-batch/internal/pipeline"
	"go-student-batch/pkg/batch"
)

// ErrJobFailed is returned when the import ends FAILED, so the process
// exits non-zero.
var ErrJobFailed = errors.New("job failed")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run importStudents once and exit with its status",
		Args:  cobra.NoArgs,
		RunE:  runImport,
	}
	cmd.Flags().String("input", "", "CSV file or http(s) URL to import")
	cmd.Flags().Int("chunk-size", 0, "records per chunk transaction")
	cmd.Flags().Int("concurrency", 0, "chunks in flight at once, 0 for unlimited")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(cmd, map[string]string{
		"job.input_path":  "input",
		"job.chunk_size":  "chunk-size",
		"job.concurrency": "concurrency",
	})
	if err != nil {
		return err
	}
	defer a.close()

	job, err := pipeline.NewImportJob(a.cfg.Job, a.db, a.log)
	if err != nil {
		return err
	}

	exec, runErr := job.Run(cmd.Context())
	if exec == nil {
		return runErr
	}
	printSummary(cmd.OutOrStdout(), exec)
	if exec.Status != batch.StatusCompleted {
		return fmt.Errorf("%w: %s: %v", ErrJobFailed, exec.ID, runErr)
	}
	return nil
}

func printSummary(w io.Writer, exec *batch.JobExecution) {
	_, _ = fmt.Fprintf(w, "%s %s: %s\n", exec.JobName, exec.ID, exec.Status)
	for _, s := range exec.Steps {
		_, _ = fmt.Fprintf(w, "  %s: %s read=%d written=%d commits=%d rollbacks=%d duration=%s\n",
			s.StepName, s.Status, s.ReadCount, s.WriteCount, s.CommitCount, s.RollbackCount, s.Duration())
	}
	if exec.ExitMessage != "" {
		_, _ = fmt.Fprintf(w, "  exit: %s\n", exec.ExitMessage)
	}
}
