package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wdirstat/wdirstat/internal/scan"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.facade.StopScan()

			return m, tea.Quit
		case "s":
			if m.state == "scanning" {
				m.facade.SuspendScan()
			}

			return m, nil
		case "r":
			if m.state == "scanning" {
				m.facade.ResumeScan()
			}

			return m, nil
		}

		if m.state == "results" {
			var cmd tea.Cmd

			m.table, cmd = m.table.Update(msg)

			return m, cmd
		}

		return m, nil

	case scanStartedMsg:
		if msg.err != nil {
			m.err = msg.err

			return m, tea.Quit
		}

		return m, nil

	case tickMsg:
		return m.onTick()

	case spinner.TickMsg:
		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m Model) onTick() (tea.Model, tea.Cmd) {
	switch m.facade.ScanState() {
	case scan.StateDone, scan.StateCancelled:
		m.scanCancelled = m.facade.ScanState() == scan.StateCancelled
		m.state = "results"
		m.table = m.buildResultsTable()

		return m, nil
	}

	return m, tickCmd()
}

func (m Model) buildResultsTable() table.Model {
	records := m.facade.GetExtensionData()

	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		ext := r.Extension
		if ext == "" {
			ext = "(none)"
		}

		rows = append(rows, table.Row{ext, fmt.Sprintf("%d", r.Files), formatBytes(r.Bytes)})
	}

	t := m.table
	t.SetRows(rows)

	return t
}
