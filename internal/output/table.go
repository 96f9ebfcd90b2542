package output

import (
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const barWidth = 20

func renderTable(report *StatusReport) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Window", "Usage", "", "Resets in"})

	for _, w := range report.Windows {
		resetsIn := w.ResetsIn
		if resetsIn == "" {
			resetsIn = "-"
		}
		status := w.Percent
		if w.OverLimit {
			status += " (over limit)"
		}
		t.AppendRow(table.Row{w.Label, UsageBar(w.Utilization, barWidth), status, resetsIn})
	}

	if report.CheckID != "" {
		t.AppendFooter(table.Row{"", "", "", "check " + shortID(report.CheckID)})
	}

	return t.Render()
}

// UsageBar draws a filled/empty bar for a 0-100 percentage.
func UsageBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(percent / 100 * float64(width)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
