package tui

import "github.com/dm/pmon/internal/page"

// renderFooter renders the key binding help footer at full terminal width.
// When app.showHelp is true, shows the global bindings plus those of the
// current page kind; otherwise a brief hint.
func renderFooter(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}
	text := "? for help"
	if app.showHelp {
		text = helpGlobal
		switch app.pages[app.cur].(type) {
		case *page.WattPage:
			text += "\n" + helpWatt
		case *page.PowerPage:
			text += "\n" + helpPower
		}
	}
	return StyleDim.Width(width).Render(text)
}
