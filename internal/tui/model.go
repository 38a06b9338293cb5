// Package tui implements the interactive viewer (`wdirstat tui`): a
// bubbletea program that drives the facade (internal/wdirstat) exactly
// the way an out-of-scope shell would, through its public methods and
// hint trampoline only.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wdirstat/wdirstat/internal/scan"
	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

const tickInterval = 150 * time.Millisecond

// Model is the bubbletea model driving one scan-and-browse session.
type Model struct {
	facade *wdirstat.Facade
	roots  []string
	opts   scan.Options

	state string // "scanning", "results"

	spinner  spinner.Model
	progress progress.Model
	table    table.Model

	width, height int
	err           error
	scanCancelled bool
}

// New builds a Model that, once Init runs, starts scanning roots with
// opts through facade.
func New(facade *wdirstat.Facade, roots []string, opts scan.Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	cols := []table.Column{
		{Title: "Extension", Width: 16},
		{Title: "Files", Width: 10},
		{Title: "Size", Width: 14},
	}

	tbl := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(12))

	return Model{
		facade:   facade,
		roots:    roots,
		opts:     opts,
		state:    "scanning",
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		table:    tbl,
	}
}

// Init starts the scan and the polling loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, startScanCmd(m.facade, m.roots, m.opts), tickCmd())
}

type scanStartedMsg struct{ err error }

func startScanCmd(facade *wdirstat.Facade, roots []string, opts scan.Options) tea.Cmd {
	return func() tea.Msg {
		err := facade.StartScan(roots, opts.Workers, opts)

		return scanStartedMsg{err: err}
	}
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func formatBytes(n uint64) string { return humanize.IBytes(n) }
