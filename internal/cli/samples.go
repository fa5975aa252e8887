package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"jobweaver/internal/sample"
)

func newSamplesCommand(app *App) *cobra.Command {
	var (
		path  string
		where []string
	)
	cmd := &cobra.Command{
		Use:   "samples",
		Short: "Validate a sample sheet and list its samples",
		Long: `Samples loads a sample sheet, checks it against the configured metadata
schema and prints one line per sample.

Examples:
  jobweaver samples --samples samples.yaml
  jobweaver samples --samples samples.yaml --where tissue=tumor`,
		Args: invocationArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				return invalidInvocationf("--samples is required")
			}
			match := sample.Metadata{}
			for _, w := range where {
				k, v, ok := strings.Cut(w, "=")
				if !ok || k == "" {
					return invalidInvocationf("--where expects key=value (got %q)", w)
				}
				match[k] = v
			}

			list, err := loadSamples(app, path)
			if err != nil {
				return configError(err)
			}
			if len(match) > 0 {
				list = list.SubsetByMetadata(match)
			}
			for _, s := range list.Samples() {
				kinds := make([]string, 0, len(s.Data()))
				for _, d := range s.Data() {
					kinds = append(kinds, string(d.Kind()))
				}
				sort.Strings(kinds)
				fmt.Fprintf(app.Stdout, "%s\t%s\t%s\n", s.Name(), strings.Join(kinds, ","), s.Digest())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "samples", "", "Sample sheet (YAML or JSON). Required.")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Only list samples whose metadata matches key=value (repeatable)")
	return cmd
}
