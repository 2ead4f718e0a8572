package page

import (
	"context"
	"log/slog"
	"time"

	"github.com/dm/pmon/internal/client"
	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/inventory"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/recorder"
	"github.com/dm/pmon/internal/session"
)

// RecordStore is a recorder.Sink that can also give back what it mirrored.
type RecordStore interface {
	recorder.Sink
	Load(ctx context.Context, page string) ([]model.Record, error)
}

// Deps wires the pages built by Build.
type Deps struct {
	Dir       string
	Factory   client.Factory
	Prober    client.Prober
	Store     session.Store
	Records   recorder.Sink // nil keeps records in memory only
	Scheduler engine.SchedulerConfig
	// Concurrency bounds parallel queries per cycle.
	Concurrency int
	// Target is the initial target interval of pages without saved state.
	Target time.Duration
	// AutoStart turns auto-refresh on with every enabled host selected.
	AutoStart bool
	Wait      engine.WaitPolicy
	Observers []engine.Observer
	OnStatus  func(page, host string, s model.MachineStatus)
	OnAction  func(page, host string, a Action, err error)
	Log       *slog.Logger
}

// Build loads every cluster file in d.Dir and assembles its pages. A file
// that fails to load is kept in Failures and gets no pages.
func Build(ctx context.Context, d Deps) (*Registry, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	if d.Store == nil {
		d.Store = session.NewMemoryStore()
	}
	if d.Target <= 0 {
		d.Target = engine.DefaultTarget
	}

	results, err := inventory.LoadDir(d.Dir)
	if err != nil {
		return nil, err
	}

	reg := &Registry{log: log}
	for _, res := range results {
		if res.Err != nil {
			log.Error("cluster file not loaded", "file", res.File, "error", res.Err)
			reg.Failures = append(reg.Failures, LoadFailure{File: res.File, Err: res.Err})
			continue
		}
		w, p := buildPages(ctx, res.Cluster, d, log)
		reg.Watt = append(reg.Watt, w)
		reg.Power = append(reg.Power, p)
		log.Info("cluster loaded", "file", res.File, "title", res.Cluster.Title, "hosts", len(res.Cluster.Hosts))
	}
	return reg, nil
}

func buildPages(ctx context.Context, c *inventory.Cluster, d Deps, log *slog.Logger) (*WattPage, *PowerPage) {
	clients := engine.NewClients(c.Hosts, d.Factory)

	w := &WattPage{Cluster: c}
	key := w.Key()

	records := recorder.NewLog(key, d.Records)
	if rs, ok := d.Records.(RecordStore); ok {
		rows, err := rs.Load(ctx, key)
		if err != nil {
			log.Warn("records not restored", "page", key, "error", err)
		} else {
			records.Restore(rows)
		}
	}
	w.Records = records

	sched := engine.NewScheduler(d.Scheduler, log.With("page", key))
	w.Runner = engine.NewRunner(ctx, engine.RunnerConfig{
		Page:      key,
		Cycle:     engine.NewCycle(clients, d.Concurrency, log.With("page", key)),
		Scheduler: sched,
		Store:     session.Scope(d.Store, key),
		Sink:      records,
		Observers: d.Observers,
		Log:       log,
	})
	w.controls = initialControls(c, sched.State(), d)

	p := &PowerPage{Cluster: c, Wait: d.Wait}
	if d.OnStatus != nil {
		p.OnStatus = func(host string, s model.MachineStatus) { d.OnStatus(p.Key(), host, s) }
	}
	if d.OnAction != nil {
		p.OnAction = func(host string, a Action, err error) { d.OnAction(p.Key(), host, a, err) }
	}
	for _, h := range c.Hosts {
		p.Resolvers = append(p.Resolvers, engine.NewResolver(h, clients, d.Prober, log.With("page", p.Key())))
	}
	var auto bool
	if ok, err := d.Store.Get(ctx, session.PageKey(p.Key(), autoStatusKey), &auto); err == nil && ok {
		p.autoStatus = auto
	}
	p.store = d.Store
	return w, p
}

// initialControls resumes the operator inputs of a saved scheduler, or
// starts from the defaults with every enabled host selected.
func initialControls(c *inventory.Cluster, st engine.SchedulerState, d Deps) engine.Controls {
	if st.Target > 0 {
		ctl := engine.Controls{
			AutoRefresh: st.AutoRefresh || d.AutoStart,
			Target:      time.Duration(st.Target * float64(time.Second)),
			Manual:      time.Duration(st.Manual * float64(time.Second)),
			AutoCorrect: st.AutoCorrect,
			Selection:   st.Selection,
			Run:         st.Run,
		}
		return ctl.Normalize()
	}
	ctl := defaultControls(d.Target)
	ctl.AutoRefresh = d.AutoStart
	for _, h := range c.Hosts {
		if !h.Disabled {
			ctl.Selection = append(ctl.Selection, h.Name)
		}
	}
	return ctl
}
