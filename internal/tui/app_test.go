package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/pmon/internal/client"
	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/inventory"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/page"
	"github.com/dm/pmon/internal/session"
)

const rack = `
[Page]
title = Rack A
note = lab bench

[node01]
ip = 10.0.0.11
ipmi_ip = 10.0.1.11
ipmi_user = admin
ipmi_pass = secret
if_type = lanplus

[node02]
ip = 10.0.0.12
ipmi_ip = 10.0.1.12
ipmi_user = admin
ipmi_pass = secret
if_type = lanplus
disabled = true

[node03]
ip = 10.0.0.13
ipmi_ip = 10.0.1.13
ipmi_user = admin
ipmi_pass = secret
if_type = redfish
`

const brokenRack = `
[node01]
ip = 10.0.0.21
if_type = lanplus
`

// chassis is a management client that is on or off and draws a fixed power.
type chassis struct {
	mu    sync.Mutex
	on    bool
	watts float64
}

func (c *chassis) PowerState(context.Context) (client.ChassisPower, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.on {
		return client.PowerOn, nil
	}
	return client.PowerOff, nil
}

func (c *chassis) set(on bool) {
	c.mu.Lock()
	c.on = on
	c.mu.Unlock()
}

func (c *chassis) PowerUp(context.Context) error {
	c.set(true)
	return nil
}

func (c *chassis) PowerDownSoft(context.Context) error {
	c.set(false)
	return nil
}

func (c *chassis) PowerResetHard(context.Context) error {
	return nil
}

func (c *chassis) PowerReading(context.Context) (float64, error) {
	return c.watts, nil
}

type alwaysUp struct{}

func (alwaysUp) Reachable(context.Context, string) bool { return true }

type testEnv struct {
	app      *App
	reg      *page.Registry
	store    *session.MemoryStore
	machines map[string]*chassis
	dir      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rack-a.ini"), []byte(rack), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.ini"), []byte(brokenRack), 0o600))

	machines := map[string]*chassis{
		"node01": {watts: 120},
		"node02": {watts: 80},
		"node03": {watts: 60},
	}
	store := session.NewMemoryStore()
	reg, err := page.Build(context.Background(), page.Deps{
		Dir: dir,
		Factory: func(h inventory.Host) (client.ManagementClient, error) {
			return machines[h.Name], nil
		},
		Prober:    alwaysUp{},
		Store:     store,
		Scheduler: engine.DefaultSchedulerConfig(),
		Wait:      engine.WaitPolicy{Interval: time.Millisecond, Timeout: time.Second},
	})
	require.NoError(t, err)

	app := NewApp(context.Background(), reg, Options{StatusConcurrency: 2, ExportDir: dir})
	app.width = 120
	return &testEnv{app: app, reg: reg, store: store, machines: machines, dir: dir}
}

// press sends a key to the app and returns the resulting command.
func (e *testEnv) press(k string) tea.Cmd {
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := e.app.Update(msg)
	return cmd
}

// run executes cmd synchronously and feeds its message back to the app.
func (e *testEnv) run(t *testing.T, cmd tea.Cmd) (tea.Msg, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	_, next := e.app.Update(msg)
	return msg, next
}

func (e *testEnv) watt() *page.WattPage   { return e.reg.Watt[0] }
func (e *testEnv) power() *page.PowerPage { return e.reg.Power[0] }

func TestApp_PageNavigationWraps(t *testing.T) {
	env := newTestEnv(t)
	require.Len(t, env.app.pages, 3)
	assert.Equal(t, 0, env.app.cur)

	env.press("tab")
	assert.Equal(t, "wattmon_rack-a", env.app.pages[env.app.cur].Key())
	env.press("tab")
	assert.Equal(t, "powerman_rack-a", env.app.pages[env.app.cur].Key())
	env.press("tab")
	assert.Equal(t, 0, env.app.cur)
	env.press("shift+tab")
	assert.Equal(t, 2, env.app.cur)
	env.press("h")
	assert.Equal(t, 0, env.app.cur)
}

func TestApp_HomeListsClustersAndFailures(t *testing.T) {
	env := newTestEnv(t)
	view := stripANSI(env.app.View())

	assert.Contains(t, view, "Rack A")
	assert.Contains(t, view, "rack-a.ini")
	assert.Contains(t, view, "3 hosts")
	assert.Contains(t, view, "Load failures")
	assert.Contains(t, view, "broken.ini")
}

func TestApp_ManualRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")

	msg, next := env.run(t, env.press("r"))
	rep, ok := msg.(ReportMsg)
	require.True(t, ok)
	assert.Nil(t, next, "no tick while auto refresh is off")
	assert.False(t, rep.Report.Decision.Reschedule)
	assert.InDelta(t, 180.0, rep.Report.Reading.TotalWatts, 1e-9)
	assert.False(t, env.app.watt[env.watt().Key()].refreshing)

	view := stripANSI(env.app.View())
	assert.Contains(t, view, "180.0 W")
	assert.Contains(t, view, "(2 machines)")
	assert.Contains(t, view, "120.0 W")
	assert.Contains(t, view, "n/a", "disabled host is not polled")
}

func TestApp_ManualRefreshDisabledDuringAutoRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")
	key := env.watt().Key()

	_, next := env.run(t, env.press("a"))
	require.NotNil(t, next)
	gen := env.app.watt[key].gen

	assert.Nil(t, env.press("r"))
	assert.True(t, env.app.failed)
	assert.Contains(t, env.app.notice, "manual refresh disabled")
	assert.Equal(t, gen, env.app.watt[key].gen, "pending tick stays current")
	assert.Zero(t, env.watt().Runner.Scheduler().Stats().IntervalStat[1])
}

func TestApp_AutoRefreshSchedulesTicks(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")
	key := env.watt().Key()

	cmd := env.press("a")
	assert.True(t, env.watt().Controls().AutoRefresh)
	msg, next := env.run(t, cmd)
	require.True(t, msg.(ReportMsg).Report.Decision.Reschedule)
	require.NotNil(t, next, "report schedules the next tick")

	gen := env.app.watt[key].gen
	_, cmd = env.app.Update(TickMsg{Page: key, Gen: gen})
	require.NotNil(t, cmd, "current tick runs a cycle")
	assert.True(t, env.app.watt[key].refreshing)

	_, cmd = env.app.Update(TickMsg{Page: key, Gen: gen})
	assert.Nil(t, cmd, "tick while refreshing is dropped")
}

func TestApp_StaleGenerationIsDropped(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")
	key := env.watt().Key()

	first := env.press("a")
	require.NotNil(t, first)
	old := env.app.watt[key].gen

	// A control change while the cycle is in flight only marks it pending.
	assert.Nil(t, env.press("+"))
	assert.Equal(t, 6*time.Second, env.watt().Controls().Target)
	assert.Greater(t, env.app.watt[key].gen, old)

	_, next := env.run(t, first)
	require.NotNil(t, next, "pending refresh runs at once")
	assert.True(t, env.app.watt[key].refreshing)

	_, cmd := env.app.Update(TickMsg{Page: key, Gen: old})
	assert.Nil(t, cmd)
}

func TestApp_AutoRefreshOffStopsChain(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")
	key := env.watt().Key()

	_, next := env.run(t, env.press("a"))
	require.NotNil(t, next)
	gen := env.app.watt[key].gen

	assert.Nil(t, env.press("a"))
	assert.False(t, env.watt().Controls().AutoRefresh)
	assert.False(t, env.watt().Runner.Scheduler().Stats().AutoRefresh)

	_, cmd := env.app.Update(TickMsg{Page: key, Gen: gen})
	assert.Nil(t, cmd)
}

func TestApp_ControlKeys(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")

	env.press("+")
	env.press("+")
	env.press("-")
	env.press("]")
	env.press("]")
	env.press("[")
	env.press("c")

	ctl := env.watt().Controls()
	assert.Equal(t, 6*time.Second, ctl.Target)
	assert.Equal(t, 100*time.Millisecond, ctl.Manual)
	assert.True(t, ctl.AutoCorrect)
	assert.False(t, ctl.AutoRefresh)

	for range 10 {
		env.press("-")
	}
	assert.Equal(t, engine.MinTarget, env.watt().Controls().Target)
}

func TestApp_ToggleHost(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")

	env.press("space")
	assert.False(t, env.watt().IsActive("node01"))
	env.press("space")
	assert.True(t, env.watt().IsActive("node01"))

	env.press("down")
	env.press("space")
	assert.False(t, env.watt().IsActive("node02"))
	assert.True(t, env.app.failed)
	assert.Contains(t, env.app.notice, "disabled")
}

func TestApp_FilterHosts(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")

	env.press("/")
	for _, r := range "03" {
		env.press(string(r))
	}
	assert.Equal(t, 1, env.app.cur, "typing into the filter does not switch pages")
	env.press("enter")

	view := stripANSI(env.app.View())
	assert.Contains(t, view, "filter: 03")
	assert.Contains(t, view, "node03")
	assert.NotContains(t, view, "node01")

	env.press("space")
	assert.False(t, env.watt().IsActive("node03"), "cursor follows the filtered rows")

	env.press("esc")
	assert.Contains(t, stripANSI(env.app.View()), "node01")
}

func TestApp_RecordingAndExport(t *testing.T) {
	env := newTestEnv(t)
	env.press("tab")

	env.press("o")
	assert.True(t, env.watt().Controls().Record)
	env.run(t, env.press("r"))
	env.run(t, env.press("r"))
	assert.Equal(t, int64(2), env.watt().Records.Count())

	msg, _ := env.run(t, env.press("e"))
	exp := msg.(ExportMsg)
	require.NoError(t, exp.Err)
	data, err := os.ReadFile(exp.Path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"), "header plus two rows")
	assert.Contains(t, env.app.notice, "exported")

	env.press("x")
	assert.Equal(t, int64(0), env.watt().Records.Count())
}

func TestApp_PowerStatusAndStart(t *testing.T) {
	env := newTestEnv(t)
	env.press("shift+tab")
	p := env.power()

	view := stripANSI(env.app.View())
	assert.Contains(t, view, "not queried")
	assert.Contains(t, view, "https://10.0.1.11")

	msg, _ := env.run(t, env.press("s"))
	done := msg.(ActionDoneMsg)
	assert.NoError(t, done.Err)
	assert.Equal(t, model.StateMachineDown, p.Resolver("node01").Status().State)
	assert.Contains(t, stripANSI(env.app.View()), "Machine Down")

	cmd := env.press("u")
	require.NotNil(t, cmd)
	assert.Equal(t, page.ActionStart, env.app.power[p.Key()].busy["node01"])
	assert.Nil(t, env.press("u"), "busy host ignores further actions")

	msg, _ = env.run(t, cmd)
	require.NoError(t, msg.(ActionDoneMsg).Err)
	assert.Empty(t, env.app.power[p.Key()].busy)
	assert.Equal(t, model.StateOSUp, p.Resolver("node01").Status().State)
	assert.Contains(t, env.app.notice, "start node01: done")
}

func TestApp_PowerActionNotPermitted(t *testing.T) {
	env := newTestEnv(t)
	env.press("shift+tab")

	assert.Nil(t, env.press("d"), "shutdown needs a known running machine")
	assert.True(t, env.app.failed)

	env.press("down")
	assert.Nil(t, env.press("u"))
	assert.Contains(t, stripANSI(env.app.View()), "disabled, power actions hidden")
}

func TestApp_AutoStatus(t *testing.T) {
	env := newTestEnv(t)
	p := env.power()
	env.press("shift+tab")

	cmd := env.press("t")
	require.True(t, p.AutoStatus())
	msg, _ := env.run(t, cmd)
	assert.Len(t, msg.(StatusMsg).Statuses, 3)
	assert.False(t, env.app.power[p.Key()].refreshing)

	var saved bool
	ok, err := env.store.Get(context.Background(), session.PageKey(p.Key(), "auto_status"), &saved)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, saved)

	// Re-entering the page queries every host again.
	env.press("h")
	assert.NotNil(t, env.press("shift+tab"))
}

func TestApp_ResumedAutoRefreshStartsOnInit(t *testing.T) {
	env := newTestEnv(t)
	env.watt().UpdateControls(func(c *engine.Controls) { c.AutoRefresh = true })

	app := NewApp(context.Background(), env.reg, Options{})
	require.NotNil(t, app.Init())
	assert.True(t, app.watt[env.watt().Key()].refreshing)
}

// stripANSI removes ANSI escape sequences for plain-text content assertions.
// Handles all CSI sequences (not just SGR m-terminated ones).
func stripANSI(s string) string {
	var out strings.Builder
	inEscape := false
	for i, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == '[' && i > 0 && s[i-1] == '\x1b' {
				continue
			}
			// CSI final bytes are in range 0x40–0x7E (@, A-Z, [, \, ], ^, _, `, a-z, {, |, }, ~)
			if r >= 0x40 && r <= 0x7E {
				inEscape = false
			}
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}
