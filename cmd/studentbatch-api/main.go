package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-student-batch/internal/cli"
)

// Equivalent to "studentbatch serve" with the same flags.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd("dev")
	root.SetArgs(append([]string{"serve"}, os.Args[1:]...))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
