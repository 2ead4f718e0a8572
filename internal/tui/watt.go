package tui

import (
	"fmt"
	"strings"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/format"
	"github.com/dm/pmon/internal/inventory"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/page"
)

var wattColumns = []columnDef{
	{Title: "Sel", Width: 3},
	{Title: "Host", Width: 18},
	{Title: "IP", Width: 15},
	{Title: "Power", Width: 28, Align: "right"},
	{Title: "Note", Width: 24},
}

// renderWattPage renders a Watt page: overview, metric cards, controls, host
// table, scheduler diagnostics, and advisories.
func renderWattPage(app *App, p *page.WattPage) string {
	st := app.watt[p.Key()]
	stats := p.Runner.Scheduler().Stats()
	rep := p.Last()

	parts := []string{renderPageTitle(p.Cluster)}

	if rep != nil {
		parts = append(parts, renderOverview(app.width, rep.Reading, stats, p.Records.Count()))
		if m := renderMetricsRow(app.width, stats, st); m != "" {
			parts = append(parts, m)
		}
	} else {
		parts = append(parts, StyleDim.Render("No reading yet. Press r to refresh or a to start auto refresh."))
	}

	parts = append(parts, renderControls(p))

	var reading model.ClusterReading
	if rep != nil {
		reading = rep.Reading
	}
	ctl := p.Controls()
	active := ctl.Active()
	rows := make([][]string, len(p.Cluster.Hosts))
	for i, h := range p.Cluster.Hosts {
		rows[i] = []string{
			checkbox(active[h.Name], h.Disabled),
			truncateName(h.Name, 18),
			h.IP,
			hostPowerCell(h, reading),
			truncateName(h.Note, 24),
		}
	}
	indices := st.table.filter(p.Cluster.HostNames())
	parts = append(parts, st.table.render(rows, indices))

	if rep != nil {
		parts = append(parts, renderDiagnostics(stats))
		if a := renderAdvisories(rep.Advisories); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, "\n")
}

func renderPageTitle(c *inventory.Cluster) string {
	title := StyleTitle.Render(c.Title)
	if c.Note != "" {
		title += "  " + StyleDim.Render(c.Note)
	}
	return title
}

func renderControls(p *page.WattPage) string {
	ctl := p.Controls()
	return fmt.Sprintf("Auto refresh: %s  Target: %s  Manual: %s  Auto correction: %s  Recording: %s",
		onOff(ctl.AutoRefresh),
		format.FormatDuration(ctl.Target),
		format.FormatSignedSeconds(ctl.Manual.Seconds()),
		onOff(ctl.AutoCorrect),
		onOff(ctl.Record),
	)
}

func renderDiagnostics(s engine.SchedulerStats) string {
	lines := []string{
		fmt.Sprintf("Since: %s  Last interval: %s  Last duration: %s",
			format.FormatSince(s.Since), format.FormatSeconds(s.LastInterval), format.FormatSeconds(s.LastDuration)),
		fmt.Sprintf("Interval: %s  Duration: %s  Error: %s (avg %s)",
			format.FormatStat(s.IntervalStat), format.FormatStat(s.DurationStat),
			format.FormatStat(s.ErrorStat), format.FormatSignedSeconds(s.AvgError)),
	}
	return StyleDim.Render(strings.Join(lines, "\n"))
}

func renderAdvisories(advs []model.Advisory) string {
	if len(advs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(advs))
	for _, a := range advs {
		line := severityToStyle(advisorySeverity(a.Severity)).Render("▲ " + a.Title)
		if a.Detail != "" {
			line += StyleDim.Render(": " + a.Detail)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// hostPowerCell renders a host's power reading. Hosts missing from the
// reading (no cycle yet) show the placeholder.
func hostPowerCell(h inventory.Host, reading model.ClusterReading) string {
	r, ok := reading.Host(h.Name)
	if !ok {
		return StyleDim.Render(format.NotAvailable)
	}
	s := format.FormatHostPower(r)
	switch {
	case !r.Active:
		return StyleDim.Render(s)
	case r.Err != "":
		return StyleRed.Render(s)
	default:
		return StyleGreen.Render(s)
	}
}

func checkbox(checked, disabled bool) string {
	switch {
	case disabled:
		return StyleDim.Render("[-]")
	case checked:
		return "[x]"
	default:
		return "[ ]"
	}
}
