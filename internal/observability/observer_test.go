package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/model"
)

func TestCollector_ObserveReport(t *testing.T) {
	page := "wattmon_obs_test"
	rep := engine.Report{
		Page: page,
		Reading: model.ClusterReading{
			Hosts: []model.HostReading{
				{Host: "a", Active: true, Included: true, Watts: 150},
				{Host: "b", Active: true, Err: "connection error: timeout"},
				{Host: "c"},
			},
			TotalWatts:  150,
			ActiveHosts: 1,
		},
		Decision: engine.Decision{
			Sleep:         4 * time.Second,
			Reschedule:    true,
			Reinitialized: true,
			Duration:      300 * time.Millisecond,
		},
		Stats:  engine.SchedulerStats{AutoIEC: -0.25},
		Record: &model.Record{},
	}

	NewCollector().ObserveReport(rep)

	assert.Equal(t, 150.0, testutil.ToFloat64(ClusterPowerWatts.WithLabelValues(page)))
	assert.Equal(t, 1.0, testutil.ToFloat64(ClusterActiveHosts.WithLabelValues(page)))
	assert.Equal(t, 150.0, testutil.ToFloat64(HostPowerWatts.WithLabelValues(page, "a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(HostReadingErrors.WithLabelValues(page, "b")))
	assert.Equal(t, 4.0, testutil.ToFloat64(NextSleep.WithLabelValues(page)))
	assert.Equal(t, -0.25, testutil.ToFloat64(AutoCorrection.WithLabelValues(page)))
	assert.Equal(t, 1.0, testutil.ToFloat64(SchedulerEvents.WithLabelValues(page, "reinit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(SchedulerEvents.WithLabelValues(page, "clamp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RecordsTotal.WithLabelValues(page)))
}

func TestObserveStatus(t *testing.T) {
	page := "powerman_obs_test"
	ObserveStatus(page, "a", model.MachineStatus{State: model.StateOSDown})

	assert.Equal(t, 1.0, testutil.ToFloat64(MachineState.WithLabelValues(page, "a", "os-down")))
	assert.Equal(t, 0.0, testutil.ToFloat64(MachineState.WithLabelValues(page, "a", "os-up")))

	ObserveStatus(page, "a", model.MachineStatus{State: model.StateOSUp})
	assert.Equal(t, 0.0, testutil.ToFloat64(MachineState.WithLabelValues(page, "a", "os-down")))
	assert.Equal(t, 1.0, testutil.ToFloat64(MachineState.WithLabelValues(page, "a", "os-up")))
}

func TestObserveAction(t *testing.T) {
	ObserveAction("obs-host", "start", nil)
	ObserveAction("obs-host", "start", errors.New("x"))
	ObserveAction("obs-host", "start", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(PowerActions.WithLabelValues("obs-host", "start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(PowerActions.WithLabelValues("obs-host", "start", "error")))
}
