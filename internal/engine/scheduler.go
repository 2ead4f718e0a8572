package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/session"
)

// Scheduler bounds and defaults.
const (
	MinTarget       = time.Second
	DefaultTarget   = 5 * time.Second
	MaxManualOffset = 5 * time.Second

	DefaultSamples   = 10
	DefaultTrim      = 0
	DefaultPrecision = 3

	stateKey = "scheduler"
)

// Controls are the operator inputs of one iteration.
type Controls struct {
	AutoRefresh bool
	Target      time.Duration
	Manual      time.Duration
	AutoCorrect bool
	// Selection lists the active hosts in file order.
	Selection []string
	// Record appends the cycle's reading to the record log. It does not
	// affect scheduling.
	Record bool
	// Run is bumped every time auto-refresh is switched on. A new value
	// starts a fresh run even when the previous loop never saw the toggle
	// go off.
	Run uint64
}

// Normalize clamps Target to at least MinTarget and Manual to
// ±MaxManualOffset.
func (c Controls) Normalize() Controls {
	if c.Target < MinTarget {
		c.Target = MinTarget
	}
	c.Manual = max(-MaxManualOffset, min(MaxManualOffset, c.Manual))
	return c
}

// Active returns Selection as a set.
func (c Controls) Active() map[string]bool {
	m := make(map[string]bool, len(c.Selection))
	for _, h := range c.Selection {
		m[h] = true
	}
	return m
}

// SchedulerConfig sizes the averagers and tunes the corrector.
type SchedulerConfig struct {
	Samples    int
	Trim       int
	Precision  int
	Kp, Ki, Kd float64
	PIDHistory int
}

// DefaultSchedulerConfig returns the stock configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Samples:    DefaultSamples,
		Trim:       DefaultTrim,
		Precision:  DefaultPrecision,
		Kp:         DefaultKp,
		Ki:         DefaultKi,
		Kd:         DefaultKd,
		PIDHistory: DefaultPIDHistory,
	}
}

// SchedulerState is the persisted form of a Scheduler. Durations are in
// seconds.
type SchedulerState struct {
	AutoRefresh bool     `json:"auto_refresh"`
	Target      float64  `json:"target"`
	Manual      float64  `json:"manual"`
	AutoCorrect bool     `json:"auto_correct"`
	Selection   []string `json:"selection"`
	Run         uint64   `json:"run"`

	AutoIEC      float64   `json:"auto_iec_amount"`
	Since        time.Time `json:"since"`
	PrevStart    time.Time `json:"prev_start"`
	LastDuration float64   `json:"last_duration"`
	LastInterval float64   `json:"last_interval"`
	LastError    float64   `json:"last_error"`
	LastUpdated  time.Time `json:"last_updated"`

	Interval  model.AveragerState `json:"interval"`
	Duration  model.AveragerState `json:"duration"`
	Error     model.AveragerState `json:"error"`
	PIDErrors []float64           `json:"pid_errors"`
}

// Decision is the outcome of one iteration.
type Decision struct {
	// Sleep is the wait before the next cycle. Zero when Reschedule is false.
	Sleep time.Duration
	// Reschedule is true while auto-refresh is on.
	Reschedule bool
	// Reinitialized reports that history was reset on this iteration.
	Reinitialized bool
	// Clamped reports that the computed sleep was negative.
	Clamped bool
	// Interval is the measured start-to-start interval, zero on the first
	// iteration of a run.
	Interval time.Duration
	Duration time.Duration
}

// SchedulerStats is a read-only view for display.
type SchedulerStats struct {
	AutoRefresh  bool
	AutoCorrect  bool
	Target       float64
	Manual       float64
	Since        time.Time
	LastUpdated  time.Time
	LastDuration float64
	LastInterval float64
	LastError    float64
	AvgDuration  float64
	AvgInterval  float64
	AvgError     float64
	AutoIEC      float64

	DurationStat [3]int
	IntervalStat [3]int
	ErrorStat    [3]int

	DurationHistory []float64
	IntervalHistory []float64
}

// Scheduler decides when a page's next poll cycle runs.
//
// It is Idle while auto-refresh is off and AutoRefreshing otherwise. Every
// iteration reports the cycle's start and end through Complete; the returned
// Decision carries the next sleep. The history (averagers, corrector, auto
// correction, interval marker) is reset whenever auto-refresh is freshly
// enabled or any of the target, manual offset, host selection or
// auto-correct toggle change.
type Scheduler struct {
	mu       sync.Mutex
	cfg      SchedulerConfig
	interval *model.Averager
	duration *model.Averager
	errAvg   *model.Averager
	pid      *PIDCorrector
	st       SchedulerState
	log      *slog.Logger
}

// NewScheduler creates an Idle scheduler.
func NewScheduler(cfg SchedulerConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		interval: model.NewAverager(cfg.Samples, cfg.Trim, cfg.Precision),
		duration: model.NewAverager(cfg.Samples, cfg.Trim, cfg.Precision),
		errAvg:   model.NewAverager(cfg.Samples, cfg.Trim, cfg.Precision),
		pid:      NewPIDCorrector(cfg.Kp, cfg.Ki, cfg.Kd, cfg.PIDHistory),
		log:      log,
	}
}

// Complete ingests one finished cycle that started at start and ended at end.
func (s *Scheduler) Complete(ctl Controls, start, end time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctl = ctl.Normalize()
	dur := end.Sub(start)
	d := Decision{Duration: dur}
	s.st.LastUpdated = start

	if !ctl.AutoRefresh {
		s.st.AutoRefresh = false
		s.recordDuration(dur)
		return d
	}

	target := ctl.Target.Seconds()
	manual := ctl.Manual.Seconds()

	reinit := !s.st.AutoRefresh ||
		s.st.Target != target ||
		s.st.Manual != manual ||
		s.st.AutoCorrect != ctl.AutoCorrect ||
		!slices.Equal(s.st.Selection, ctl.Selection) ||
		s.st.Run != ctl.Run

	s.st.AutoRefresh = true
	s.st.Run = ctl.Run
	s.st.Target = target
	s.st.Manual = manual
	s.st.AutoCorrect = ctl.AutoCorrect
	s.st.Selection = slices.Clone(ctl.Selection)

	if reinit {
		s.reset(start)
		d.Reinitialized = true
		s.log.Info("auto refresh reinitialized",
			"target", target, "manual", manual, "auto_correct", ctl.AutoCorrect, "hosts", len(ctl.Selection))
	}

	if !s.st.PrevStart.IsZero() {
		iv := start.Sub(s.st.PrevStart)
		secs := iv.Seconds()
		s.interval.Put(secs)
		s.st.LastInterval = secs
		s.st.LastError = target - secs
		s.errAvg.Put(s.st.LastError)
		if ctl.AutoCorrect {
			s.pid.PutData(target, secs)
		}
		d.Interval = iv
	}
	s.st.PrevStart = start

	if ctl.AutoCorrect {
		s.st.AutoIEC += s.pid.Correction()
	}

	static := target + manual
	sleep := static + s.st.AutoIEC
	if sleep < 0 {
		d.Clamped = true
		s.log.Debug("negative sleep clamped", "sleep", sleep, "auto_iec_amount", s.st.AutoIEC)
		s.st.AutoIEC = 0
		sleep = math.Max(static, 0)
	}

	s.recordDuration(dur)

	d.Sleep = time.Duration(sleep * float64(time.Second))
	d.Reschedule = true
	return d
}

// Stop moves the scheduler to Idle without running a cycle, so the next
// enabled iteration counts as fresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.st.AutoRefresh = false
	s.mu.Unlock()
}

func (s *Scheduler) reset(now time.Time) {
	s.st.Since = now
	s.st.PrevStart = time.Time{}
	s.st.AutoIEC = 0
	s.st.LastInterval = 0
	s.st.LastError = 0
	s.interval.Clear()
	s.duration.Clear()
	s.errAvg.Clear()
	s.pid.Clear()
}

func (s *Scheduler) recordDuration(d time.Duration) {
	s.st.LastDuration = d.Seconds()
	s.duration.Put(s.st.LastDuration)
}

// Stats returns a snapshot for display.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat := func(a *model.Averager) [3]int {
		e, n, t := a.Stat()
		return [3]int{e, n, t}
	}
	return SchedulerStats{
		AutoRefresh:     s.st.AutoRefresh,
		AutoCorrect:     s.st.AutoCorrect,
		Target:          s.st.Target,
		Manual:          s.st.Manual,
		Since:           s.st.Since,
		LastUpdated:     s.st.LastUpdated,
		LastDuration:    s.st.LastDuration,
		LastInterval:    s.st.LastInterval,
		LastError:       s.st.LastError,
		AvgDuration:     s.duration.Get(),
		AvgInterval:     s.interval.Get(),
		AvgError:        s.errAvg.Get(),
		AutoIEC:         s.st.AutoIEC,
		DurationStat:    stat(s.duration),
		IntervalStat:    stat(s.interval),
		ErrorStat:       stat(s.errAvg),
		DurationHistory: s.duration.History(),
		IntervalHistory: s.interval.History(),
	}
}

// State returns the persistable state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.st
	st.Selection = slices.Clone(s.st.Selection)
	st.Interval = s.interval.State()
	st.Duration = s.duration.State()
	st.Error = s.errAvg.State()
	st.PIDErrors = s.pid.Errors()
	return st
}

// Restore replaces the scheduler's state with st.
func (s *Scheduler) Restore(st SchedulerState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval.Restore(st.Interval)
	s.duration.Restore(st.Duration)
	s.errAvg.Restore(st.Error)
	s.pid.Restore(st.PIDErrors)
	st.Interval, st.Duration, st.Error, st.PIDErrors = model.AveragerState{}, model.AveragerState{}, model.AveragerState{}, nil
	s.st = st
}

// Save persists the state in store.
func (s *Scheduler) Save(ctx context.Context, store session.Store) error {
	if err := store.Set(ctx, stateKey, s.State()); err != nil {
		return fmt.Errorf("save scheduler state: %w", err)
	}
	return nil
}

// Load restores the state from store. It reports false when nothing was
// stored yet.
func (s *Scheduler) Load(ctx context.Context, store session.Store) (bool, error) {
	var st SchedulerState
	ok, err := store.Get(ctx, stateKey, &st)
	if err != nil {
		return false, fmt.Errorf("load scheduler state: %w", err)
	}
	if ok {
		s.Restore(st)
	}
	return ok, nil
}
