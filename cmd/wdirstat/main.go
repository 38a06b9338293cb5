// Command wdirstat is the CLI shell around the engine described in
// spec.md: a directory-size analyzer that scans in parallel, aggregates
// per-extension statistics, and can persist or reload its tree as CSV.
package main

import (
	"fmt"
	"os"

	"github.com/wdirstat/wdirstat/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
