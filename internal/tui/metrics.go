package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/format"
)

// renderMetricCard renders a single metric card with title, value, and sparkline.
//
// Layout (3 rows inside a rounded border):
//
//	╭──────────────────╮
//	│ Title            │   ← titleStyle (normally dim/muted; yellow/red when threshold exceeded)
//	│ 5.012 sec.       │   ← bold, metric color
//	│ ▁▂▃▅▇█▇▅▃▂       │   ← colored sparkline
//	╰──────────────────╯
func renderMetricCard(title, value string, sparkValues []float64, cardWidth int, color lipgloss.Color, titleStyle lipgloss.Style) string {
	// Minimum of 8 avoids zero/negative Width() args.
	const minCardWidth = 8
	if cardWidth < minCardWidth {
		cardWidth = minCardWidth
	}

	// lipgloss Width() includes padding, so available content width is
	// (cardWidth-4) - 2 = cardWidth-6.
	innerWidth := cardWidth - 6
	if innerWidth < 1 {
		innerWidth = 1
	}

	valueStyle := lipgloss.NewStyle().Bold(true).Foreground(color)

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorGray).
		Padding(0, 1).
		Width(cardWidth - 4)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		valueStyle.Render(value),
		RenderSparkline(sparkValues, innerWidth, color),
	))
}

// renderMetricsRow renders 4 metric cards (Total Power, Interval, Duration,
// Interval Error) with a "Control Loop" section label.
// Wide terminals (>= 80 cols): 1x4 horizontal row.
// Narrow terminals (< 80 cols): 2x2 grid.
// Returns empty string before the first cycle.
func renderMetricsRow(width int, stats engine.SchedulerStats, st *wattState) string {
	if stats.LastUpdated.IsZero() {
		return ""
	}

	durTitle := titleStyle(durationSeverity(stats.AvgDuration, stats.Target))
	errTitle := titleStyle(errorSeverity(stats.AvgError, stats.Target))

	cards := func(cardWidth int) []string {
		return []string{
			renderMetricCard("Total Power", format.FormatWatts(st.powerHistory.Latest()), st.powerHistory.Values(), cardWidth, colorGreen, StyleDim),
			renderMetricCard("Interval", format.FormatSeconds(stats.LastInterval), stats.IntervalHistory, cardWidth, colorCyan, StyleDim),
			renderMetricCard("Duration", format.FormatSeconds(stats.LastDuration), stats.DurationHistory, cardWidth, colorYellow, durTitle),
			renderMetricCard("Interval Error", format.FormatSignedSeconds(stats.LastError), absValues(st.errorHistory.Values()), cardWidth, colorOrange, errTitle),
		}
	}

	if width > 0 && width < 80 {
		// Each card renders at (cardWidth-2) chars wide, so 2 cards fill
		// width when cardWidth = (width+4)/2.
		cardWidth := (width + 4) / 2
		if cardWidth < 8 {
			return ""
		}
		c := cards(cardWidth)
		label := StyleDim.MaxWidth(width).Render("Control Loop")
		top := lipgloss.JoinHorizontal(lipgloss.Top, c[0], c[1])
		bottom := lipgloss.JoinHorizontal(lipgloss.Top, c[2], c[3])
		return lipgloss.JoinVertical(lipgloss.Left, label, top, bottom)
	}

	// 4*(cardWidth-2) = width → cardWidth = (width+8)/4.
	cardWidth := (width + 8) / 4
	if cardWidth < 20 {
		cardWidth = 20
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cards(cardWidth)...)
	return lipgloss.JoinVertical(lipgloss.Left, StyleDim.Render("Control Loop"), row)
}

// absValues maps a signed series to magnitudes so the sparkline shows how
// far the interval strays in either direction.
func absValues(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		if v < 0 {
			v = -v
		}
		out[i] = v
	}
	return out
}
