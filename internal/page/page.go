// Package page assembles the per-cluster pages: a Watt page running the
// refresh control loop and a Power page tracking machine status. Every page
// owns its own scheduler, averagers, corrector and record log.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/inventory"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/recorder"
	"github.com/dm/pmon/internal/session"
)

// ErrUnknownHost is returned for hosts not in the page's cluster.
var ErrUnknownHost = errors.New("unknown host")

const (
	wattPrefix  = "wattmon_"
	powerPrefix = "powerman_"
)

// Page is the common surface of every page.
type Page interface {
	Title() string
	Key() string
}

// Home is the landing page.
type Home struct{}

func (Home) Title() string { return "Home" }
func (Home) Key() string   { return "home" }

// WattPage monitors the power draw of one cluster.
type WattPage struct {
	Cluster *inventory.Cluster
	Runner  *engine.Runner
	Records *recorder.Log

	mu       sync.Mutex
	controls engine.Controls
	last     *engine.Report
	loop     chan struct{} // closed when the running loop ends; nil when idle
}

func (p *WattPage) Title() string { return p.Cluster.Title }
func (p *WattPage) Key() string   { return wattPrefix + p.Cluster.Key() }

// Controls returns a copy of the current operator inputs.
func (p *WattPage) Controls() engine.Controls {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.controls
	c.Selection = append([]string(nil), p.controls.Selection...)
	return c
}

// UpdateControls applies fn to the controls and normalizes the result.
// Switching auto-refresh on starts a new run.
func (p *WattPage) UpdateControls(fn func(c *engine.Controls)) engine.Controls {
	p.mu.Lock()
	defer p.mu.Unlock()
	wasAuto := p.controls.AutoRefresh
	fn(&p.controls)
	if p.controls.AutoRefresh && !wasAuto {
		p.controls.Run++
	}
	p.controls = p.controls.Normalize()
	return p.controls
}

// SetActive marks host active or inactive, keeping the selection in file
// order.
func (p *WattPage) SetActive(host string, active bool) {
	p.UpdateControls(func(c *engine.Controls) {
		set := c.Active()
		set[host] = active
		c.Selection = c.Selection[:0:0]
		for _, h := range p.Cluster.Hosts {
			if set[h.Name] {
				c.Selection = append(c.Selection, h.Name)
			}
		}
	})
}

// IsActive reports whether host is selected.
func (p *WattPage) IsActive(host string) bool {
	return p.Controls().Active()[host]
}

// Refresh runs one iteration with the current controls.
func (p *WattPage) Refresh(ctx context.Context) engine.Report {
	rep := p.Runner.RunOnce(ctx, p.Controls())
	p.setLast(rep)
	return rep
}

// Run drives the control loop until auto-refresh is turned off or ctx ends.
func (p *WattPage) Run(ctx context.Context) error {
	return p.Runner.Run(ctx, p.Controls, p.setLast)
}

// StartLoop runs the control loop in the background unless it is already
// running. It reports whether a new loop was started.
func (p *WattPage) StartLoop(ctx context.Context) bool {
	p.mu.Lock()
	if p.loop != nil {
		p.mu.Unlock()
		return false
	}
	done := make(chan struct{})
	p.loop = done
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.loop = nil
			p.mu.Unlock()
			close(done)
		}()
		_ = p.Run(ctx)
	}()
	return true
}

// Running reports whether the background loop is active.
func (p *WattPage) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop != nil
}

// Done returns a channel closed when the current loop ends. It is already
// closed when no loop is running.
func (p *WattPage) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loop == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return p.loop
}

func (p *WattPage) setLast(rep engine.Report) {
	p.mu.Lock()
	p.last = &rep
	p.mu.Unlock()
}

// Last returns the latest report, or nil before the first cycle.
func (p *WattPage) Last() *engine.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// PowerPage tracks machine status and issues power actions for one cluster.
type PowerPage struct {
	Cluster   *inventory.Cluster
	Resolvers []*engine.Resolver
	Wait      engine.WaitPolicy
	// OnStatus and OnAction, when set, are called after every status
	// refresh and every finished power action.
	OnStatus func(host string, s model.MachineStatus)
	OnAction func(host string, a Action, err error)

	store session.Store

	mu         sync.Mutex
	autoStatus bool
}

const autoStatusKey = "auto_status"

func (p *PowerPage) Title() string { return p.Cluster.Title }
func (p *PowerPage) Key() string   { return powerPrefix + p.Cluster.Key() }

// AutoStatus reports whether statuses are refreshed on page entry.
func (p *PowerPage) AutoStatus() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoStatus
}

// SetAutoStatus sets the "get status automatically" toggle and persists it.
func (p *PowerPage) SetAutoStatus(ctx context.Context, on bool) error {
	p.mu.Lock()
	p.autoStatus = on
	p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	if err := p.store.Set(ctx, session.PageKey(p.Key(), autoStatusKey), on); err != nil {
		return fmt.Errorf("save auto status: %w", err)
	}
	return nil
}

// Resolver returns the resolver of host, or nil.
func (p *PowerPage) Resolver(host string) *engine.Resolver {
	for _, r := range p.Resolvers {
		if r.Host().Name == host {
			return r
		}
	}
	return nil
}

// RefreshAll refreshes every host concurrently and returns the statuses in
// file order.
func (p *PowerPage) RefreshAll(ctx context.Context, concurrency int) []model.MachineStatus {
	out := make([]model.MachineStatus, len(p.Resolvers))
	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, r := range p.Resolvers {
		g.Go(func() error {
			out[i] = r.Refresh(ctx)
			p.notifyStatus(r.Host().Name, out[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Action is a power page operation on one host.
type Action string

const (
	ActionStatus   Action = "status"
	ActionStart    Action = "start"
	ActionShutdown Action = "shutdown"
	ActionReset    Action = "reset"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStatus, ActionStart, ActionShutdown, ActionReset:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Do runs action on host and blocks until it completes, including any wait
// for the machine to settle. Every observed status is passed to the page's
// status hook.
func (p *PowerPage) Do(ctx context.Context, host string, action Action) error {
	r := p.Resolver(host)
	if r == nil {
		return fmt.Errorf("%s: %w", host, ErrUnknownHost)
	}
	wait := p.Wait
	progress := wait.Progress
	wait.Progress = func(phase string, s model.MachineStatus) {
		p.notifyStatus(host, s)
		if progress != nil {
			progress(phase, s)
		}
	}

	var err error
	switch action {
	case ActionStatus:
		r.Refresh(ctx)
	case ActionStart:
		err = r.Start(ctx, wait)
	case ActionShutdown:
		err = r.Shutdown(ctx, wait)
	case ActionReset:
		err = r.Reset(ctx)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	p.notifyStatus(host, r.Status())
	if action != ActionStatus && p.OnAction != nil {
		p.OnAction(host, action, err)
	}
	return err
}

func (p *PowerPage) notifyStatus(host string, s model.MachineStatus) {
	if p.OnStatus != nil {
		p.OnStatus(host, s)
	}
}

// Statuses returns the last observed status of every host in file order.
func (p *PowerPage) Statuses() []model.MachineStatus {
	out := make([]model.MachineStatus, len(p.Resolvers))
	for i, r := range p.Resolvers {
		out[i] = r.Status()
	}
	return out
}

// LoadFailure is a cluster file that could not be loaded.
type LoadFailure struct {
	File string
	Err  error
}

// Registry holds the pages of every cluster file, sorted by file name.
type Registry struct {
	Home     Home
	Watt     []*WattPage
	Power    []*PowerPage
	Failures []LoadFailure

	log *slog.Logger
}

// Lookup returns the page with the given key.
func (r *Registry) Lookup(key string) (Page, bool) {
	if key == r.Home.Key() {
		return r.Home, true
	}
	if w := r.WattPage(key); w != nil {
		return w, true
	}
	if p := r.PowerPage(key); p != nil {
		return p, true
	}
	return nil, false
}

// WattPage returns the Watt page with key, or nil.
func (r *Registry) WattPage(key string) *WattPage {
	for _, p := range r.Watt {
		if p.Key() == key {
			return p
		}
	}
	return nil
}

// PowerPage returns the Power page with key, or nil.
func (r *Registry) PowerPage(key string) *PowerPage {
	for _, p := range r.Power {
		if p.Key() == key {
			return p
		}
	}
	return nil
}

// Pages lists all pages: Home, then Watt and Power pages per cluster.
func (r *Registry) Pages() []Page {
	out := []Page{r.Home}
	for i := range r.Watt {
		out = append(out, r.Watt[i], r.Power[i])
	}
	return out
}

// RunAll starts the control loop of every Watt page with auto-refresh on
// and blocks until ctx ends and all loops have returned.
func (r *Registry) RunAll(ctx context.Context) error {
	for _, p := range r.Watt {
		if p.Controls().AutoRefresh && p.StartLoop(ctx) {
			r.log.Info("control loop started", "page", p.Key())
		}
	}
	<-ctx.Done()
	for _, p := range r.Watt {
		<-p.Done()
	}
	return nil
}

// defaultControls is the initial state of a Watt page.
func defaultControls(target time.Duration) engine.Controls {
	return engine.Controls{Target: target}.Normalize()
}
