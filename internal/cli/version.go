package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  invocationArgs(cobra.NoArgs),
		// Version needs no settings.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(app.Stdout, "jobweaver %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
