package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/session"
)

// RecordSink receives the cycle's reading while recording is on.
type RecordSink interface {
	Append(ctx context.Context, r model.ClusterReading) (model.Record, error)
}

// Observer is notified after every iteration.
type Observer interface {
	ObserveReport(rep Report)
}

// Report describes one finished iteration of a page's control loop.
type Report struct {
	Page       string
	Reading    model.ClusterReading
	Decision   Decision
	Stats      SchedulerStats
	Record     *model.Record // nil unless the reading was recorded
	Advisories []model.Advisory
	Start, End time.Time
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Page      string
	Cycle     *Cycle
	Scheduler *Scheduler
	// Store, when set, receives the scheduler state after every iteration
	// and provides it on construction.
	Store     session.Store
	Sink      RecordSink
	Observers []Observer
	Log       *slog.Logger
}

// Runner is the control loop of one Watt page: poll, record, schedule.
type Runner struct {
	page      string
	cycle     *Cycle
	sched     *Scheduler
	store     session.Store
	sink      RecordSink
	observers []Observer
	log       *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner, restoring the scheduler state from the store.
func NewRunner(ctx context.Context, cfg RunnerConfig) *Runner {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("page", cfg.Page)

	r := &Runner{
		page:      cfg.Page,
		cycle:     cfg.Cycle,
		sched:     cfg.Scheduler,
		store:     cfg.Store,
		sink:      cfg.Sink,
		observers: cfg.Observers,
		log:       log,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	if r.store != nil {
		if ok, err := r.sched.Load(ctx, r.store); err != nil {
			log.Warn("scheduler state not restored", "error", err)
		} else if ok {
			log.Debug("scheduler state restored")
		}
	}
	return r
}

// Page returns the page key.
func (r *Runner) Page() string {
	return r.page
}

// Scheduler returns the runner's scheduler.
func (r *Runner) Scheduler() *Scheduler {
	return r.sched
}

// RunOnce executes a single iteration and reports it. It never fails: host
// errors are part of the reading and persistence failures are logged.
func (r *Runner) RunOnce(ctx context.Context, ctl Controls) Report {
	start := r.now()
	reading := r.cycle.Poll(ctx, ctl.Active())

	var rec *model.Record
	if ctl.Record && r.sink != nil {
		got, err := r.sink.Append(ctx, reading)
		if err != nil {
			r.log.Warn("record append failed", "error", err)
		} else {
			rec = &got
		}
	}
	end := r.now()

	d := r.sched.Complete(ctl, start, end)
	if r.store != nil {
		if err := r.sched.Save(ctx, r.store); err != nil {
			r.log.Warn("scheduler state not saved", "error", err)
		}
	}
	stats := r.sched.Stats()

	rep := Report{
		Page:       r.page,
		Reading:    reading,
		Decision:   d,
		Stats:      stats,
		Record:     rec,
		Advisories: CalcAdvisories(stats, reading, d),
		Start:      start,
		End:        end,
	}
	for _, o := range r.observers {
		o.ObserveReport(rep)
	}
	return rep
}

// Run drives the loop: run a cycle, sleep for the decided duration, repeat.
// controls is read before every cycle; when auto-refresh has been turned off
// during the sleep the loop stops without another cycle. The first cycle
// always runs, so Run with auto-refresh off is a single manual refresh.
// Run returns nil when auto-refresh ends and ctx.Err() on cancellation.
func (r *Runner) Run(ctx context.Context, controls func() Controls, report func(Report)) error {
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctl := controls()
		if !first && !ctl.AutoRefresh {
			r.Stop(ctx)
			return nil
		}

		rep := r.RunOnce(ctx, ctl)
		if report != nil {
			report(rep)
		}
		if !rep.Decision.Reschedule {
			return nil
		}
		if err := r.sleep(ctx, rep.Decision.Sleep); err != nil {
			return err
		}
	}
}

// Stop puts the scheduler into Idle and persists it.
func (r *Runner) Stop(ctx context.Context) {
	r.sched.Stop()
	if r.store != nil {
		if err := r.sched.Save(ctx, r.store); err != nil {
			r.log.Warn("scheduler state not saved", "error", err)
		}
	}
	r.log.Info("auto refresh stopped")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
