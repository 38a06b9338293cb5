package cli

import (
	"github.com/spf13/pflag"

	"github.com/wdirstat/wdirstat/internal/scan"
)

// scanFlags collects the pflag-bound values shared by the scan and tui
// subcommands, mirroring the teacher's flat dirstat.Options struct
// (internal/dirstat in idelchi/dirstat) but scoped to ScanOptions
// (spec.md §6) instead of extension filtering.
type scanFlags struct {
	Workers           int
	FollowMountPoints bool
	FollowJunctions   bool
	FollowSymlinks    bool
	LogicalSizes      bool
	CollectOwner      bool
	Output            string
	Top               int
	SavePath          string
	Debug             bool
}

func (f scanFlags) toScanOptions() scan.Options {
	opts := scan.DefaultOptions()
	opts.Workers = f.Workers
	opts.FollowMountPoints = f.FollowMountPoints
	opts.FollowJunctions = f.FollowJunctions
	opts.FollowSymlinks = f.FollowSymlinks
	opts.UsePhysicalSizes = !f.LogicalSizes
	opts.CollectOwner = f.CollectOwner

	return opts
}

func addScanFlags(fl *pflag.FlagSet, f *scanFlags) {
	fl.IntVar(&f.Workers, "workers", scan.DefaultOptions().Workers, "worker goroutines per volume queue")
	fl.BoolVar(&f.FollowMountPoints, "follow-mounts", false, "recurse across filesystem/volume boundaries")
	fl.BoolVar(&f.FollowJunctions, "follow-junctions", false, "accepted but has no effect on traversal")
	fl.BoolVar(&f.FollowSymlinks, "follow-symlinks", false, "recurse into symlinked directories")
	fl.BoolVar(&f.LogicalSizes, "logical-sizes", false, "use size_logical instead of size_physical as the default basis")
	fl.BoolVar(&f.CollectOwner, "collect-owner", false, "write the OWNER column with --save (owners are not looked up during the scan)")
	fl.StringVarP(&f.Output, "output", "o", "table", "output format: table or json")
	fl.IntVarP(&f.Top, "top", "t", 10, "number of top extensions to display")
	fl.StringVar(&f.SavePath, "save", "", "write the resulting tree to a CSV file")
	fl.BoolVar(&f.Debug, "debug", false, "enable debug output")
}
