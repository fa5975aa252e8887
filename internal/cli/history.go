package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobweaver/internal/state"
)

func newHistoryCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List previous builds, oldest first",
		Args:  invocationArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := state.NewStore(app.Fs, app.workRoot())
			if err != nil {
				return err
			}
			runs, err := store.ListRuns()
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(app.Stdout, "%s\t%s\t%s\temitted=%d\tskipped=%d\n",
					r.StartTime.UTC().Format(time.RFC3339), r.RunID, r.Status, len(r.Emitted), len(r.Skipped))
			}
			return nil
		},
	}
}
