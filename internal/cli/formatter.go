package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/wdirstat/wdirstat/internal/extindex"
	"github.com/wdirstat/wdirstat/internal/tree"
)

// tabSpacing is the number of spaces between tabwriter columns, matching
// the teacher's internal/cli/formatter.go constant.
const tabSpacing = 2

// report is the JSON/table-serializable summary a scan or CSV load
// produces, adapted from the teacher's dirstat.Stats (per-extension
// breakdown plus file/folder totals) to the engine's item tree.
type report struct {
	Path         string            `json:"path"`
	SizeLogical  uint64            `json:"size_logical"`
	SizePhysical uint64            `json:"size_physical"`
	FilesCount   uint64            `json:"files_count"`
	FoldersCount uint64            `json:"folders_count"`
	Cancelled    bool              `json:"cancelled"`
	Extensions   []extindex.Record `json:"extensions"`
}

func buildReport(root *tree.Item, extensions []extindex.Record, cancelled bool, top int) report {
	snap := root.Snapshot()

	if top > 0 && top < len(extensions) {
		extensions = extensions[:top]
	}

	return report{
		Path:         root.Path("/"),
		SizeLogical:  snap.SizeLogical,
		SizePhysical: snap.SizePhysical,
		FilesCount:   snap.FilesCount,
		FoldersCount: snap.FoldersCount,
		Cancelled:    cancelled,
		Extensions:   extensions,
	}
}

func printJSON(r report, w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

//nolint:forbidigo // intentional console output
func printTable(r report, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, tabSpacing, ' ', 0)

	fmt.Fprintf(tw, "Path:\t%s\n", r.Path)

	if r.Cancelled {
		fmt.Fprintln(tw, "Status:\tcancelled (partial)")
	} else {
		fmt.Fprintln(tw, "Status:\tdone")
	}

	fmt.Fprintln(tw, "\nTop extensions:\t\t")

	for i, ext := range r.Extensions {
		label := ext.Extension
		if label == "" {
			label = "\"\""
		}

		pct := 0.0
		if r.SizePhysical > 0 {
			pct = 100.0 * float64(ext.Bytes) / float64(r.SizePhysical)
		}

		fmt.Fprintf(tw, "  %d) %s:\t%d files, %s (%.1f%%)\n",
			i+1, label, ext.Files, humanize.IBytes(ext.Bytes), pct)
	}

	fmt.Fprintln(tw, "\nStats:\t\t")
	fmt.Fprintf(tw, "Total files:\t%d\n", r.FilesCount)
	fmt.Fprintf(tw, "Total folders:\t%d\n", r.FoldersCount)
	fmt.Fprintf(tw, "Total size:\t%s (%d bytes)\n", humanize.IBytes(r.SizePhysical), r.SizePhysical)

	return tw.Flush()
}
