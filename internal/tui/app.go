package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/page"
)

const (
	targetStep = time.Second
	manualStep = 100 * time.Millisecond

	historyLen = 60
)

// wattState is the view state of one Watt page.
//
// gen identifies the current scheduling chain: every explicit refresh and
// every control change starts a new generation, and ticks or reports of an
// older generation never schedule further cycles.
type wattState struct {
	gen        int
	refreshing bool
	pending    bool // a refresh was requested while one was in flight
	table      tableModel

	powerHistory *model.Ring // total watts per cycle
	errorHistory *model.Ring // interval error per cycle
}

// powerState is the view state of one Power page.
type powerState struct {
	refreshing bool
	busy       map[string]page.Action
	table      tableModel
}

// Options configures the dashboard.
type Options struct {
	// StatusConcurrency bounds parallel status queries of a power page.
	StatusConcurrency int
	// ExportDir receives CSV exports; empty means the working directory.
	ExportDir string
	Log       *slog.Logger
}

// App is the root Bubble Tea model for pmon.
type App struct {
	ctx  context.Context
	reg  *page.Registry
	opts Options
	log  *slog.Logger

	pages []page.Page
	cur   int

	watt  map[string]*wattState
	power map[string]*powerState

	spinner spinner.Model
	notice  string
	failed  bool // notice is an error

	// Layout
	width, height int

	// UI state
	showHelp bool
}

// NewApp creates the dashboard over the registry's pages. ctx bounds every
// poll cycle and power action started from the UI.
func NewApp(ctx context.Context, reg *page.Registry, opts Options) *App {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	app := &App{
		ctx:     ctx,
		reg:     reg,
		opts:    opts,
		log:     opts.Log,
		pages:   reg.Pages(),
		watt:    make(map[string]*wattState),
		power:   make(map[string]*powerState),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(StyleCyan)),
	}
	for _, p := range reg.Watt {
		app.watt[p.Key()] = &wattState{
			table:        newTableModel(wattColumns),
			powerHistory: model.NewRing(historyLen),
			errorHistory: model.NewRing(historyLen),
		}
	}
	for _, p := range reg.Power {
		app.power[p.Key()] = &powerState{
			busy:  make(map[string]page.Action),
			table: newTableModel(powerColumns),
		}
	}
	return app
}

// Init implements tea.Model. Starts the control loop of every Watt page that
// resumed with auto-refresh on.
func (app *App) Init() tea.Cmd {
	cmds := []tea.Cmd{app.spinner.Tick}
	for _, p := range app.reg.Watt {
		if p.Controls().AutoRefresh {
			cmds = append(cmds, app.requestRefresh(p))
		}
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model. All state changes happen here.
func (app *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		app.width = msg.Width
		app.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		app.spinner, cmd = app.spinner.Update(msg)
		return app, cmd

	case ReportMsg:
		return app, app.handleReport(msg)

	case TickMsg:
		p := app.reg.WattPage(msg.Page)
		st := app.watt[msg.Page]
		if p == nil || msg.Gen != st.gen || st.refreshing {
			return app, nil
		}
		return app, app.refreshCmd(p, st)

	case StatusMsg:
		if st := app.power[msg.Page]; st != nil {
			st.refreshing = false
		}

	case ActionDoneMsg:
		if st := app.power[msg.Page]; st != nil {
			delete(st.busy, msg.Host)
		}
		if msg.Err != nil {
			app.setError(fmt.Sprintf("%s %s: %v", msg.Action, msg.Host, msg.Err))
		} else if msg.Action != page.ActionStatus {
			app.setNotice(fmt.Sprintf("%s %s: done", msg.Action, msg.Host))
		}

	case ExportMsg:
		if msg.Err != nil {
			app.setError("export failed: " + msg.Err.Error())
		} else {
			app.setNotice("exported " + msg.Path)
		}

	case tea.KeyMsg:
		return app, app.handleKey(msg)
	}

	return app, nil
}

func (app *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	// An open filter input swallows every key.
	if t := app.currentTable(); t != nil && t.searching {
		updated, cmd, _ := t.Update(msg, 0)
		*t = updated
		return cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Help):
		app.showHelp = !app.showHelp
		return nil
	case key.Matches(msg, keys.NextPage):
		return app.switchPage(app.cur + 1)
	case key.Matches(msg, keys.PrevPage):
		return app.switchPage(app.cur - 1)
	case key.Matches(msg, keys.Home):
		return app.switchPage(0)
	}

	switch p := app.pages[app.cur].(type) {
	case *page.WattPage:
		return app.wattKey(p, msg)
	case *page.PowerPage:
		return app.powerKey(p, msg)
	}
	return nil
}

// switchPage moves to page i, wrapping around. Entering a Power page with
// automatic status on refreshes every host.
func (app *App) switchPage(i int) tea.Cmd {
	n := len(app.pages)
	app.cur = ((i % n) + n) % n
	app.notice = ""
	if p, ok := app.pages[app.cur].(*page.PowerPage); ok && p.AutoStatus() {
		return app.refreshStatuses(p)
	}
	return nil
}

func (app *App) currentTable() *tableModel {
	switch p := app.pages[app.cur].(type) {
	case *page.WattPage:
		return &app.watt[p.Key()].table
	case *page.PowerPage:
		return &app.power[p.Key()].table
	}
	return nil
}

func (app *App) wattKey(p *page.WattPage, msg tea.KeyMsg) tea.Cmd {
	st := app.watt[p.Key()]
	names := p.Cluster.HostNames()
	indices := st.table.filter(names)

	updated, cmd, handled := st.table.Update(msg, len(indices))
	st.table = updated
	if handled {
		return cmd
	}

	switch {
	case key.Matches(msg, keys.Refresh):
		// The loop owns the schedule while auto-refresh is on.
		if p.Controls().AutoRefresh {
			app.setError("auto refresh is on, manual refresh disabled")
			return nil
		}
		return app.requestRefresh(p)

	case key.Matches(msg, keys.AutoRefresh):
		ctl := p.UpdateControls(func(c *engine.Controls) { c.AutoRefresh = !c.AutoRefresh })
		if ctl.AutoRefresh {
			return app.requestRefresh(p)
		}
		st.gen++
		p.Runner.Stop(app.ctx)
		return nil

	case key.Matches(msg, keys.AutoCorrect):
		return app.changeControls(p, func(c *engine.Controls) { c.AutoCorrect = !c.AutoCorrect })
	case key.Matches(msg, keys.TargetUp):
		return app.changeControls(p, func(c *engine.Controls) { c.Target += targetStep })
	case key.Matches(msg, keys.TargetDown):
		return app.changeControls(p, func(c *engine.Controls) { c.Target -= targetStep })
	case key.Matches(msg, keys.ManualUp):
		return app.changeControls(p, func(c *engine.Controls) { c.Manual += manualStep })
	case key.Matches(msg, keys.ManualDown):
		return app.changeControls(p, func(c *engine.Controls) { c.Manual -= manualStep })

	case key.Matches(msg, keys.ToggleHost):
		i := st.table.selected(indices)
		if i < 0 {
			return nil
		}
		h := p.Cluster.Hosts[i]
		if h.Disabled {
			app.setError(h.Name + " is disabled")
			return nil
		}
		p.SetActive(h.Name, !p.IsActive(h.Name))
		return app.restartIfAuto(p)

	case key.Matches(msg, keys.Record):
		// Recording does not touch the schedule.
		ctl := p.UpdateControls(func(c *engine.Controls) { c.Record = !c.Record })
		if ctl.Record {
			app.setNotice("recording")
		} else {
			app.setNotice("recording paused")
		}

	case key.Matches(msg, keys.ResetRecords):
		if err := p.Records.Reset(app.ctx); err != nil {
			app.setError("reset records: " + err.Error())
		} else {
			app.setNotice("records cleared")
		}

	case key.Matches(msg, keys.ExportRecords):
		return exportCmd(p, app.opts.ExportDir)
	}
	return nil
}

// changeControls applies fn to the page controls.
func (app *App) changeControls(p *page.WattPage, fn func(c *engine.Controls)) tea.Cmd {
	p.UpdateControls(fn)
	return app.restartIfAuto(p)
}

// restartIfAuto runs a cycle at once while auto-refresh is on, so the
// scheduler reinitializes against the new inputs without waiting out the
// current sleep.
func (app *App) restartIfAuto(p *page.WattPage) tea.Cmd {
	if p.Controls().AutoRefresh {
		return app.requestRefresh(p)
	}
	return nil
}

// requestRefresh starts a new generation and runs a cycle now, or as soon as
// the one in flight finishes.
func (app *App) requestRefresh(p *page.WattPage) tea.Cmd {
	st := app.watt[p.Key()]
	st.gen++
	if st.refreshing {
		st.pending = true
		return nil
	}
	return app.refreshCmd(p, st)
}

func (app *App) refreshCmd(p *page.WattPage, st *wattState) tea.Cmd {
	st.refreshing = true
	ctx, gen, pageKey := app.ctx, st.gen, p.Key()
	return func() tea.Msg {
		return ReportMsg{Page: pageKey, Gen: gen, Report: p.Refresh(ctx)}
	}
}

func (app *App) handleReport(msg ReportMsg) tea.Cmd {
	p := app.reg.WattPage(msg.Page)
	st := app.watt[msg.Page]
	if p == nil {
		return nil
	}
	st.refreshing = false
	st.powerHistory.Push(msg.Report.Reading.TotalWatts)
	if msg.Report.Decision.Interval > 0 {
		st.errorHistory.Push(msg.Report.Stats.LastError)
	}
	if st.pending {
		st.pending = false
		return app.refreshCmd(p, st)
	}
	d := msg.Report.Decision
	if msg.Gen != st.gen || !d.Reschedule {
		return nil
	}
	gen := st.gen
	return tea.Tick(d.Sleep, func(time.Time) tea.Msg {
		return TickMsg{Page: msg.Page, Gen: gen}
	})
}

func (app *App) powerKey(p *page.PowerPage, msg tea.KeyMsg) tea.Cmd {
	st := app.power[p.Key()]
	names := p.Cluster.HostNames()
	indices := st.table.filter(names)

	updated, cmd, handled := st.table.Update(msg, len(indices))
	st.table = updated
	if handled {
		return cmd
	}

	if key.Matches(msg, keys.Refresh) {
		return app.refreshStatuses(p)
	}
	if key.Matches(msg, keys.AutoStatus) {
		on := !p.AutoStatus()
		if err := p.SetAutoStatus(app.ctx, on); err != nil {
			app.log.Warn("auto status not saved", "page", p.Key(), "error", err)
		}
		if on {
			return app.refreshStatuses(p)
		}
		return nil
	}

	var action page.Action
	switch {
	case key.Matches(msg, keys.HostStatus):
		action = page.ActionStatus
	case key.Matches(msg, keys.Start):
		action = page.ActionStart
	case key.Matches(msg, keys.Shutdown):
		action = page.ActionShutdown
	case key.Matches(msg, keys.Reset):
		action = page.ActionReset
	default:
		return nil
	}

	i := st.table.selected(indices)
	if i < 0 {
		return nil
	}
	res := p.Resolvers[i]
	host := res.Host().Name
	if _, ok := st.busy[host]; ok {
		return nil
	}
	if action != page.ActionStatus && !allowed(res, action) {
		app.setError(fmt.Sprintf("%s %s: not permitted in current status", action, host))
		return nil
	}
	st.busy[host] = action
	ctx, pageKey := app.ctx, p.Key()
	return func() tea.Msg {
		err := p.Do(ctx, host, action)
		return ActionDoneMsg{Page: pageKey, Host: host, Action: action, Err: err}
	}
}

func (app *App) refreshStatuses(p *page.PowerPage) tea.Cmd {
	st := app.power[p.Key()]
	if st.refreshing {
		return nil
	}
	st.refreshing = true
	ctx, n, pageKey := app.ctx, app.opts.StatusConcurrency, p.Key()
	return func() tea.Msg {
		return StatusMsg{Page: pageKey, Statuses: p.RefreshAll(ctx, n)}
	}
}

// allowed reports whether the resolver permits action. Disabled hosts never
// permit any.
func allowed(r *engine.Resolver, a page.Action) bool {
	if r.Host().Disabled {
		return false
	}
	switch a {
	case page.ActionStart:
		return r.CanStart()
	case page.ActionShutdown:
		return r.CanShutdown()
	case page.ActionReset:
		return r.CanReset()
	}
	return true
}

func exportCmd(p *page.WattPage, dir string) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(dir, p.Records.Filename())
		f, err := os.Create(path)
		if err != nil {
			return ExportMsg{Err: err}
		}
		if err := p.Records.WriteCSV(f); err != nil {
			f.Close()
			return ExportMsg{Err: err}
		}
		return ExportMsg{Path: path, Err: f.Close()}
	}
}

func (app *App) setNotice(s string) {
	app.notice, app.failed = s, false
}

func (app *App) setError(s string) {
	app.notice, app.failed = s, true
}

// View implements tea.Model. Renders the full TUI.
func (app *App) View() string {
	parts := []string{renderHeader(app)}

	switch p := app.pages[app.cur].(type) {
	case *page.WattPage:
		parts = append(parts, renderWattPage(app, p))
	case *page.PowerPage:
		parts = append(parts, renderPowerPage(app, p))
	default:
		parts = append(parts, renderHome(app))
	}

	if app.notice != "" {
		if app.failed {
			parts = append(parts, StyleError.Render(app.notice))
		} else {
			parts = append(parts, StyleGreen.Render(app.notice))
		}
	}
	parts = append(parts, renderFooter(app))

	return strings.Join(parts, "\n")
}
