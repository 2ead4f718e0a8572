package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/session"
)

type fakeSink struct {
	readings []model.ClusterReading
	err      error
}

func (s *fakeSink) Append(_ context.Context, r model.ClusterReading) (model.Record, error) {
	if s.err != nil {
		return model.Record{}, s.err
	}
	s.readings = append(s.readings, r)
	return model.RecordFromReading(int64(len(s.readings)-1), r, r.PolledAt), nil
}

type reportCollector struct{ reports []Report }

func (c *reportCollector) ObserveReport(rep Report) { c.reports = append(c.reports, rep) }

func newTestRunner(t *testing.T, store session.Store, sink RecordSink, obs ...Observer) *Runner {
	t.Helper()
	mocks := map[string]*MockManagementClient{
		"node1": {PowerReadingFn: watts(120)},
		"node2": {PowerReadingFn: watts(80)},
	}
	cycle := NewCycle(NewClients(testHosts("node1", "node2"), mockFactory(mocks)), 0, nil)
	r := NewRunner(context.Background(), RunnerConfig{
		Page:      "wattmon_rack",
		Cycle:     cycle,
		Scheduler: NewScheduler(DefaultSchedulerConfig(), nil),
		Store:     store,
		Sink:      sink,
		Observers: obs,
	})
	r.now = newFakeClock(250 * time.Millisecond).Now
	return r
}

func TestRunner_RunOnce(t *testing.T) {
	sink := &fakeSink{}
	obs := &reportCollector{}
	r := newTestRunner(t, nil, sink, obs)

	ctl := autoControls()
	ctl.Record = true
	rep := r.RunOnce(context.Background(), ctl)

	assert.Equal(t, "wattmon_rack", rep.Page)
	assert.Equal(t, 2, rep.Reading.ActiveHosts)
	assert.Equal(t, 200.0, rep.Reading.TotalWatts)
	assert.True(t, rep.Decision.Reschedule)
	assert.Equal(t, 250*time.Millisecond, rep.Decision.Duration)
	require.NotNil(t, rep.Record)
	assert.Equal(t, 200.0, rep.Record.TotalWatts)
	assert.Len(t, sink.readings, 1)
	require.Len(t, obs.reports, 1)
	assert.Equal(t, rep.Decision, obs.reports[0].Decision)
	assert.Empty(t, rep.Advisories)
}

func TestRunner_RecordingOffOrFailing(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(t, nil, sink)
	rep := r.RunOnce(context.Background(), autoControls())
	assert.Nil(t, rep.Record)
	assert.Empty(t, sink.readings)

	sink.err = errors.New("disk full")
	ctl := autoControls()
	ctl.Record = true
	rep = r.RunOnce(context.Background(), ctl)
	assert.Nil(t, rep.Record)
	assert.True(t, rep.Decision.Reschedule, "record failures never stop the loop")
}

func TestRunner_PersistsSchedulerState(t *testing.T) {
	store := session.Scope(session.NewMemoryStore(), "wattmon_rack")
	r := newTestRunner(t, store, nil)
	ctl := autoControls()
	r.RunOnce(context.Background(), ctl)
	r.RunOnce(context.Background(), ctl)

	has, err := store.Contains(context.Background(), stateKey)
	require.NoError(t, err)
	require.True(t, has)

	// a new runner on the same page continues the run
	r2 := newTestRunner(t, store, nil)
	assert.Equal(t, r.Scheduler().Stats(), r2.Scheduler().Stats())
	r2.now = func() time.Time { return t0.Add(time.Minute) }
	rep := r2.RunOnce(context.Background(), ctl)
	assert.False(t, rep.Decision.Reinitialized)
}

func TestRunner_RunIdleIsSingleCycle(t *testing.T) {
	r := newTestRunner(t, nil, nil)
	var sleeps int
	r.sleep = func(context.Context, time.Duration) error { sleeps++; return nil }

	var reports int
	err := r.Run(context.Background(), func() Controls {
		return Controls{Target: 5 * time.Second, Selection: []string{"node1"}}
	}, func(Report) { reports++ })

	require.NoError(t, err)
	assert.Equal(t, 1, reports)
	assert.Zero(t, sleeps)
}

func TestRunner_RunStopsWhenToggledOff(t *testing.T) {
	r := newTestRunner(t, nil, nil)
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error { slept = append(slept, d); return nil }

	var reports []Report
	err := r.Run(context.Background(), func() Controls {
		ctl := autoControls()
		ctl.AutoRefresh = len(reports) < 3
		return ctl
	}, func(rep Report) { reports = append(reports, rep) })

	require.NoError(t, err)
	assert.Len(t, reports, 3)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, slept)
	assert.True(t, reports[0].Decision.Reinitialized)
	assert.False(t, reports[2].Decision.Reinitialized)
	assert.False(t, r.Scheduler().Stats().AutoRefresh)
}

func TestRunner_RunCancelled(t *testing.T) {
	r := newTestRunner(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := r.Run(ctx, autoControls, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
