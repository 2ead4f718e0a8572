package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all key bindings for the TUI.
type keyMap struct {
	Quit     key.Binding
	Help     key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Home     key.Binding
	Up       key.Binding
	Down     key.Binding
	Refresh  key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Search   key.Binding
	Escape   key.Binding

	// Watt page
	ToggleHost    key.Binding
	AutoRefresh   key.Binding
	AutoCorrect   key.Binding
	TargetUp      key.Binding
	TargetDown    key.Binding
	ManualUp      key.Binding
	ManualDown    key.Binding
	Record        key.Binding
	ResetRecords  key.Binding
	ExportRecords key.Binding

	// Power page
	HostStatus key.Binding
	AutoStatus key.Binding
	Start      key.Binding
	Shutdown   key.Binding
	Reset      key.Binding
}

// keys is the global key map.
var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("tab", "right"),
		key.WithHelp("tab/→", "next page"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("shift+tab", "left"),
		key.WithHelp("shift+tab/←", "prev page"),
	),
	Home: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "home"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh now"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "prev rows"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "next rows"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter hosts"),
	),
	Escape: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),

	ToggleHost:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle host")),
	AutoRefresh:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto refresh")),
	AutoCorrect:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "auto correction")),
	TargetUp:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "target +1s")),
	TargetDown:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "target -1s")),
	ManualUp:      key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "manual +0.1s")),
	ManualDown:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "manual -0.1s")),
	Record:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "record")),
	ResetRecords:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset records")),
	ExportRecords: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export CSV")),

	HostStatus: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "get status")),
	AutoStatus: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "auto status")),
	Start:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "start")),
	Shutdown:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "shutdown")),
	Reset:      key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "reset")),
}

// Help strings displayed in the footer when help is toggled on.
const (
	helpGlobal = "q: quit  tab/shift+tab: page  h: home  ↑/↓: host  /: filter  ?: toggle help"
	helpWatt   = "r: refresh  a: auto  c: auto corr.  +/-: target  [/]: manual  space: host  o: record  x: reset rec.  e: export"
	helpPower  = "s: status  r: all statuses  t: auto status  u: start  d: shutdown  X: reset"
)
