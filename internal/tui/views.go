package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/wdirstat/wdirstat/internal/treemap"
)

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("error: %v\n", m.err))
	}

	switch m.state {
	case "scanning":
		return m.viewScanning()
	case "results":
		return m.viewResults()
	default:
		return ""
	}
}

func (m Model) viewScanning() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wdirstat") + "\n\n")
	b.WriteString(m.spinner.View() + " scanning...\n\n")

	pos, rangeBytes := m.facade.Progress()
	if rangeBytes > 0 {
		b.WriteString(m.progress.ViewAs(float64(pos) / float64(rangeBytes)))
	} else {
		b.WriteString(dimStyle.Render(fmt.Sprintf("scanned %s so far", formatBytes(pos))))
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("s: suspend  r: resume  q: cancel and quit"))

	return b.String()
}

func (m Model) viewResults() string {
	var b strings.Builder

	snap := m.facade.GetRoot().Snapshot()

	title := "scan complete"
	if m.scanCancelled {
		title = "scan cancelled (partial results)"
	}

	b.WriteString(titleStyle.Render(title) + "\n\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s in %d files, %d folders",
		formatBytes(snap.SizePhysical), snap.FilesCount, snap.FoldersCount)))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	b.WriteString(m.viewTreemapBar())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("q: quit"))

	return b.String()
}

// viewTreemapBar renders the root's top-level treemap layout as a single
// row of proportionally-wide, color-approximated blocks — a terminal
// stand-in for the pixel treemap render_treemap produces for a real
// shell.
func (m Model) viewTreemapBar() string {
	const barWidth = 60

	rects := m.facade.RenderTreemap(treemap.Rect{W: barWidth, H: 1})

	var b strings.Builder

	for _, r := range rects {
		if !r.Leaf || r.Bounds.W <= 0 {
			continue
		}

		style := lipgloss.NewStyle().Background(lipgloss.Color(hexOf(r.Color)))
		b.WriteString(style.Render(strings.Repeat(" ", r.Bounds.W)))
	}

	return b.String()
}

func hexOf(c colorful.Color) string { return c.Hex() }
