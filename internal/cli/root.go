// Package cli implements the wdirstat command-line shell: a thin
// consumer of the internal/wdirstat facade, adapted from the teacher's
// internal/cli package (idelchi/dirstat) from a flat pflag-only command
// into a cobra root command with scan/load/tui subcommands.
package cli

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

// New builds the wdirstat root command.
func New(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "wdirstat",
		Short: "analyze directory sizes by extension, directory, and treemap",
		Long: heredoc.Doc(`
			wdirstat scans one or more directory trees in parallel, aggregating
			size and file-count statistics up the tree, tracking hardlinks so
			shared content is only counted once physically, and can render the
			result as a squarified cushion treemap.
		`),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newScanCommand(), newLoadCommand(), newTUICommand())

	return root
}

// Execute runs the CLI against the process's actual arguments.
func Execute(version string) error {
	return New(version).Execute()
}
