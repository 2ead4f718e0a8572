package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/format"
	"github.com/dm/pmon/internal/model"
)

// renderOverview renders the overview bar of a Watt page: total power,
// machine count, averaged interval and duration, auto correction, and record
// count.
// Wide terminals (>= 80 cols): all 6 cards in a single horizontal row.
// Narrow terminals (< 80 cols): cards stacked in rows of 2.
func renderOverview(width int, reading model.ClusterReading, stats engine.SchedulerStats, records int64) string {
	if width <= 0 {
		width = 80
	}
	narrowMode := width < 80

	var cardWidth int
	if narrowMode {
		cardWidth = (width - 4) / 2
		if cardWidth < 10 {
			cardWidth = 10
		}
	} else {
		cardWidth = (width - 12) / 6
		if cardWidth < 8 {
			cardWidth = 8
		}
	}

	// Mini bar inner width: card width minus padding (1 char each side).
	barWidth := cardWidth - 4
	if barWidth < 4 {
		barWidth = 4
	}

	card := func(fg lipgloss.Color, lines ...string) string {
		return StyleOverviewCard.
			Foreground(fg).
			Width(cardWidth).
			Render(strings.Join(lines, "\n"))
	}

	power := card(colorGreen, format.FormatWatts(reading.TotalWatts), "Total Power")
	machines := card(colorBlue, format.FormatMachines(reading.ActiveHosts), "Active")

	errSev := errorSeverity(stats.AvgError, stats.Target)
	interval := card(severityFg(errSev), format.FormatSeconds(stats.AvgInterval), "Avg Interval")

	// Cycle load: share of the target spent polling.
	durSev := durationSeverity(stats.AvgDuration, stats.Target)
	var loadPct float64
	if stats.Target > 0 {
		loadPct = stats.AvgDuration / stats.Target * 100
	}
	duration := card(severityFg(durSev),
		format.FormatSeconds(stats.AvgDuration),
		renderMiniBar(loadPct, barWidth),
		"Avg Duration")

	correction := card(colorPurple, format.FormatSignedSeconds(stats.AutoIEC), "Auto Correction")
	recs := card(colorCyan, format.FormatNumber(records), "Records")

	if narrowMode {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, power, machines)
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, interval, duration)
		row3 := lipgloss.JoinHorizontal(lipgloss.Top, correction, recs)
		return lipgloss.JoinVertical(lipgloss.Left, row1, row2, row3)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, power, machines, interval, duration, correction, recs)
}

// severityFg is the card foreground for a severity.
func severityFg(s severity) lipgloss.Color {
	switch s {
	case severityCritical:
		return colorRed
	case severityWarning:
		return colorYellow
	default:
		return colorWhite
	}
}

// renderMiniBar renders a mini progress bar using Unicode block characters.
// Fills proportionally using "█" (U+2588) for filled and "░" (U+2591) for empty cells.
func renderMiniBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100.0 * float64(width))
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
