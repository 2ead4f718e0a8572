package tui

import (
	"math"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/pmon/internal/model"
)

// severity represents the alert level for a metric value.
type severity int

const (
	severityNormal   severity = iota
	severityWarning           // yellow
	severityCritical          // red
)

// errorSeverity grades the averaged interval error against the target:
// Warning above 10%, Critical above 25%.
func errorSeverity(avgError, target float64) severity {
	if target <= 0 {
		return severityNormal
	}
	ratio := math.Abs(avgError) / target
	switch {
	case ratio > 0.25:
		return severityCritical
	case ratio > 0.10:
		return severityWarning
	default:
		return severityNormal
	}
}

// durationSeverity returns Warning when the averaged cycle duration exceeds
// 80% of the target and Critical when it exceeds the target itself.
func durationSeverity(avgDuration, target float64) severity {
	switch {
	case target <= 0:
		return severityNormal
	case avgDuration > target:
		return severityCritical
	case avgDuration > 0.8*target:
		return severityWarning
	default:
		return severityNormal
	}
}

// advisorySeverity maps an advisory to the display severity.
func advisorySeverity(s model.AdvisorySeverity) severity {
	switch s {
	case model.SeverityCritical:
		return severityCritical
	case model.SeverityWarning:
		return severityWarning
	default:
		return severityNormal
	}
}

// severityToStyle maps a severity level to the appropriate lipgloss style.
func severityToStyle(s severity) lipgloss.Style {
	switch s {
	case severityWarning:
		return StyleYellow
	case severityCritical:
		return StyleRed
	default:
		return lipgloss.NewStyle()
	}
}

// titleStyle keeps the muted card title for normal values.
func titleStyle(s severity) lipgloss.Style {
	if s == severityNormal {
		return StyleDim
	}
	return severityToStyle(s)
}
