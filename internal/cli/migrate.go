package cli

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd, nil)
			if err != nil {
				return err
			}
			defer a.close()
			cmd.Printf("database migrated (%s)\n", a.db.Driver())
			return nil
		},
	}
}
