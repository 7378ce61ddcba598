package cli

import (
	"github.com/spf13/cobra"

	"go-student-batch/internal/api"
	"go-student-batch/internal/api/handler"
	"go-student-batch/internal/store"
	"go-student-batch/pkg/router"
)

const interruptedMessage = "interrupted: server stopped before the execution finished"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP launcher and job views",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}

func serve(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(cmd, map[string]string{"server.addr": "addr"})
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	n, err := store.NewJobRepository(a.db).FailInterrupted(ctx, interruptedMessage)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Warn("marked interrupted executions failed", map[string]interface{}{"count": n})
	}

	h := handler.New(ctx, a.db, a.cfg.Job, a.log)
	r := router.New(a.log.WithComponent("http").GetLogger())
	api.RegisterRoutes(r, h)

	err = r.Start(ctx, a.cfg.Server.Addr)
	// Launched executions see ctx cancelled and finish as FAILED.
	h.Wait()
	return err
}
