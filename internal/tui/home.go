package tui

import (
	"fmt"
	"path/filepath"
	"strings"
)

// renderHome lists the loaded clusters and the cluster files that failed to
// load.
func renderHome(app *App) string {
	parts := []string{StyleTitle.Render("Clusters")}

	if len(app.reg.Watt) == 0 {
		parts = append(parts, StyleDim.Render("No cluster files loaded."))
	}
	for _, p := range app.reg.Watt {
		c := p.Cluster
		line := fmt.Sprintf("%-24s %-20s %d hosts", c.Title, filepath.Base(c.File), len(c.Hosts))
		if c.Note != "" {
			line += "  " + StyleDim.Render(c.Note)
		}
		parts = append(parts, line)
	}

	if len(app.reg.Failures) > 0 {
		parts = append(parts, "", StyleError.Render("Load failures"))
		for _, f := range app.reg.Failures {
			parts = append(parts, StyleRed.Render(filepath.Base(f.File)+": "+f.Err.Error()))
		}
	}

	parts = append(parts, "", StyleDim.Render("tab/shift+tab to switch pages"))
	return strings.Join(parts, "\n")
}
