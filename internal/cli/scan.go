package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/wdirstat/wdirstat/internal/csvfmt"
	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

var allowedOutputs = []string{"table", "json"}

func newScanCommand() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "scan one or more directory trees and report statistics",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(allowedOutputs, f.Output) {
				return fmt.Errorf("invalid output format %q: must be one of %v", f.Output, allowedOutputs)
			}

			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}

			return runScan(cmd, roots, f)
		},
	}

	addScanFlags(cmd.Flags(), &f)

	return cmd
}

func runScan(cmd *cobra.Command, roots []string, f scanFlags) error {
	facade := wdirstat.New(nil)

	progress := newProgressPrinter(facade, f.Output, f.Debug)
	progress.start()

	err := facade.StartScan(roots, f.Workers, f.toScanOptions())
	if err != nil {
		progress.close()

		return err
	}

	cancelled := waitForScan(facade)

	progress.close()

	return writeReport(cmd, facade, f, cancelled)
}

func writeReport(cmd *cobra.Command, facade *wdirstat.Facade, f scanFlags, cancelled bool) error {
	extensions := facade.GetExtensionData()
	r := buildReport(facade.GetRoot(), extensions, cancelled, f.Top)

	if f.SavePath != "" {
		out, err := os.Create(f.SavePath)
		if err != nil {
			return fmt.Errorf("creating CSV output %q: %w", f.SavePath, err)
		}
		defer out.Close()

		if err := facade.SaveCSV(out, csvfmt.Options{WriteOwner: f.CollectOwner}); err != nil {
			return fmt.Errorf("writing CSV output: %w", err)
		}
	}

	switch f.Output {
	case "json":
		return printJSON(r, cmd.OutOrStdout())
	default:
		return printTable(r, cmd.OutOrStdout())
	}
}
