package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dm/pmon/internal/model"
)

// Color constants for the pmon palette.
var (
	colorGreen  = lipgloss.Color("#10b981")
	colorYellow = lipgloss.Color("#f59e0b")
	colorRed    = lipgloss.Color("#ef4444")
	colorGray   = lipgloss.Color("#6b7280")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorCyan   = lipgloss.Color("#06b6d4")
	colorPurple = lipgloss.Color("#8b5cf6")
	colorOrange = lipgloss.Color("#f97316")
	colorWhite  = lipgloss.Color("#f8fafc")
	colorDark   = lipgloss.Color("#1e293b")
	colorAlt    = lipgloss.Color("#0f172a")
)

// StyleHeader is the full-width dark header bar.
var StyleHeader = lipgloss.NewStyle().
	Background(colorDark).
	Foreground(colorWhite).
	Padding(0, 1)

// StyleTab is an inactive page tab; StyleTabActive the current one.
var (
	StyleTab       = lipgloss.NewStyle().Foreground(colorGray).Padding(0, 1)
	StyleTabActive = lipgloss.NewStyle().Bold(true).Foreground(colorWhite).Background(colorBlue).Padding(0, 1)
)

// StyleOverviewCard is a card in the overview bar of a Watt page.
var StyleOverviewCard = lipgloss.NewStyle().
	Background(colorAlt).
	Foreground(colorWhite).
	Padding(0, 1).
	Margin(0).
	Align(lipgloss.Center)

// Table styles.
var (
	StyleTableHeader = lipgloss.NewStyle().
				Bold(true).
				Underline(true).
				Foreground(colorGray)

	StyleTableRow = lipgloss.NewStyle().
			Foreground(colorWhite)

	StyleTableRowAlt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#cbd5e1"))

	StyleTableCursor = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorWhite).
				Background(colorDark)
)

// Utility styles.
var (
	StyleError = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	StyleDim   = lipgloss.NewStyle().Foreground(colorGray)
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
)

// Named color styles for table cell coloring.
var (
	StyleGreen  = lipgloss.NewStyle().Foreground(colorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(colorYellow)
	StyleOrange = lipgloss.NewStyle().Foreground(colorOrange)
	StyleBlue   = lipgloss.NewStyle().Foreground(colorBlue)
	StyleCyan   = lipgloss.NewStyle().Foreground(colorCyan)
	StylePurple = lipgloss.NewStyle().Foreground(colorPurple)
	StyleRed    = lipgloss.NewStyle().Foreground(colorRed)
)

// StatusStyle returns the style of a machine status cell.
func StatusStyle(s model.MachineStatus) lipgloss.Style {
	switch s.State {
	case model.StateOSUp:
		return StyleGreen
	case model.StateOSDown:
		return StyleYellow
	case model.StateMachineDown:
		return StyleDim
	case model.StateError:
		return StyleRed
	default:
		return lipgloss.NewStyle()
	}
}

// onOff renders a toggle state.
func onOff(v bool) string {
	if v {
		return StyleGreen.Render("ON")
	}
	return StyleDim.Render("OFF")
}
