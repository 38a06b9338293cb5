package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

func newLoadCommand() *cobra.Command {
	var (
		output string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "load <csv-file>",
		Short: "load a previously saved CSV tree and report statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(allowedOutputs, output) {
				return fmt.Errorf("invalid output format %q: must be one of %v", output, allowedOutputs)
			}

			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening CSV input %q: %w", args[0], err)
			}
			defer in.Close()

			facade := wdirstat.New(nil)
			if err := facade.LoadCSV(in); err != nil {
				return fmt.Errorf("loading CSV input: %w", err)
			}

			r := buildReport(facade.GetRoot(), facade.GetExtensionData(), false, top)

			if output == "json" {
				return printJSON(r, cmd.OutOrStdout())
			}

			return printTable(r, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	cmd.Flags().IntVarP(&top, "top", "t", 10, "number of top extensions to display")

	return cmd
}
