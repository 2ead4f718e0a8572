package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/pmon/internal/format"
	"github.com/dm/pmon/internal/page"
)

// renderHeader renders the top header bar with page name, loop state, and
// timing info.
//
// Layout:
//
//	left:   "pmon · <page title>  [i/n]"
//	center: "● AUTO" / "● IDLE" on Watt pages, busy host count on Power pages
//	right:  "Updated: <timestamp>" on Watt pages
func renderHeader(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}

	var center, right string
	p := app.pages[app.cur]
	left := fmt.Sprintf("pmon · %s  [%d/%d]", pageLabelOf(p), app.cur+1, len(app.pages))

	switch p := p.(type) {
	case *page.WattPage:
		st := app.watt[p.Key()]
		ctl := p.Controls()
		if ctl.AutoRefresh {
			center = StyleGreen.Bold(true).Render("● AUTO")
		} else {
			center = StyleDim.Render("● IDLE")
		}
		if st.refreshing {
			center += " " + app.spinner.View()
		}
		updated := format.FormatUpdated(p.Runner.Scheduler().Stats().LastUpdated)
		right = StyleDim.Render("Updated: " + updated)

	case *page.PowerPage:
		st := app.power[p.Key()]
		if n := len(st.busy); n > 0 || st.refreshing {
			center = app.spinner.View() + " " + StyleYellow.Render(busyLabel(n, st.refreshing))
		}
		right = StyleDim.Render("Auto status: ") + onOff(p.AutoStatus())
	}

	// Build row: left + padding + center + padding + right, filling innerWidth.
	// StyleHeader has Padding(0, 1) so inner content width = total width - 2.
	innerWidth := width - 2
	spacing := innerWidth - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if spacing < 0 {
		spacing = 0
	}
	leftSpacing := spacing / 2
	rightSpacing := spacing - leftSpacing

	row := left +
		strings.Repeat(" ", leftSpacing) +
		center +
		strings.Repeat(" ", rightSpacing) +
		right

	return StyleHeader.Width(width).Render(row)
}

// pageLabelOf names a page in the header and on the home page.
func pageLabelOf(p page.Page) string {
	switch p.(type) {
	case *page.WattPage:
		return p.Title() + " · Watt"
	case *page.PowerPage:
		return p.Title() + " · Power"
	}
	return p.Title()
}

func busyLabel(n int, refreshing bool) string {
	var parts []string
	if refreshing {
		parts = append(parts, "querying status")
	}
	if n == 1 {
		parts = append(parts, "1 action running")
	} else if n > 1 {
		parts = append(parts, fmt.Sprintf("%d actions running", n))
	}
	return strings.Join(parts, ", ")
}
