package tui

import (
	"strings"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/format"
	"github.com/dm/pmon/internal/page"
)

var powerColumns = []columnDef{
	{Title: "Host", Width: 18},
	{Title: "IP", Width: 15},
	{Title: "Status", Width: 26},
	{Title: "Observed", Width: 33},
	{Title: "Management", Width: 26},
	{Title: "Note", Width: 20},
}

// renderPowerPage renders a Power page: host status table and the actions
// available for the host under the cursor.
func renderPowerPage(app *App, p *page.PowerPage) string {
	st := app.power[p.Key()]
	parts := []string{renderPageTitle(p.Cluster)}

	rows := make([][]string, len(p.Resolvers))
	for i, r := range p.Resolvers {
		h := r.Host()
		rows[i] = []string{
			truncateName(h.Name, 18),
			h.IP,
			statusCell(app, st, r),
			StyleDim.Render(format.FormatObserved(r.Status())),
			StyleBlue.Render(h.MgmtURL()),
			truncateName(h.Note, 20),
		}
	}
	indices := st.table.filter(p.Cluster.HostNames())
	parts = append(parts, st.table.render(rows, indices))

	if i := st.table.selected(indices); i >= 0 {
		parts = append(parts, renderActions(p.Resolvers[i]))
	}
	return strings.Join(parts, "\n")
}

func statusCell(app *App, st *powerState, r *engine.Resolver) string {
	if a, ok := st.busy[r.Host().Name]; ok {
		return app.spinner.View() + " " + StyleYellow.Render(string(a)+"...")
	}
	s := r.Status()
	if !s.Observed() {
		return StyleDim.Render("not queried")
	}
	return StatusStyle(s).Render(format.FormatStatus(s))
}

// renderActions lists the actions the resolver permits. Disabled hosts show
// none.
func renderActions(r *engine.Resolver) string {
	h := r.Host()
	if h.Disabled {
		return StyleDim.Render(h.Name + ": disabled, power actions hidden")
	}
	actions := []string{"s get status"}
	if allowed(r, page.ActionStart) {
		actions = append(actions, "u start")
	}
	if allowed(r, page.ActionShutdown) {
		actions = append(actions, "d shutdown")
	}
	if allowed(r, page.ActionReset) {
		actions = append(actions, "X reset")
	}
	return StyleDim.Render(h.Name+": ") + strings.Join(actions, "  ")
}
