package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wdirstat/wdirstat/internal/scan"
	"github.com/wdirstat/wdirstat/internal/wdirstat"
)

// Run starts an interactive scan-and-browse session over roots using
// facade, blocking until the user quits.
func Run(facade *wdirstat.Facade, roots []string, opts scan.Options) error {
	_, err := tea.NewProgram(New(facade, roots, opts)).Run()

	return err
}
