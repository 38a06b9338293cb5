package cli

import (
	"github.com/spf13/cobra"

	"github.com/wdirstat/wdirstat/internal/tui"
	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

func newTUICommand() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "tui [paths...]",
		Short: "scan interactively, viewing progress and the treemap live",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}

			facade := wdirstat.New(nil)

			return tui.Run(facade, roots, f.toScanOptions())
		},
	}

	addScanFlags(cmd.Flags(), &f)
	cmd.Flags().Lookup("output").Hidden = true
	cmd.Flags().Lookup("save").Hidden = true

	return cmd
}
