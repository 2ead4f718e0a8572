// Package observability exports the control loops' state as Prometheus
// metrics.
package observability

import (
	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/model"
)

// Collector updates the metrics from loop reports. It implements
// engine.Observer.
type Collector struct{}

// NewCollector returns a Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// ObserveReport implements engine.Observer.
func (c *Collector) ObserveReport(rep engine.Report) {
	page := rep.Page
	ClusterPowerWatts.WithLabelValues(page).Set(rep.Reading.TotalWatts)
	ClusterActiveHosts.WithLabelValues(page).Set(float64(rep.Reading.ActiveHosts))

	for _, h := range rep.Reading.Hosts {
		switch {
		case h.Included:
			HostPowerWatts.WithLabelValues(page, h.Host).Set(h.Watts)
		case h.Active:
			HostReadingErrors.WithLabelValues(page, h.Host).Inc()
			HostPowerWatts.DeleteLabelValues(page, h.Host)
		default:
			HostPowerWatts.DeleteLabelValues(page, h.Host)
		}
	}

	d := rep.Decision
	CycleDuration.WithLabelValues(page).Observe(d.Duration.Seconds())
	if d.Interval > 0 {
		RefreshInterval.WithLabelValues(page).Set(d.Interval.Seconds())
	}
	IntervalError.WithLabelValues(page).Set(rep.Stats.AvgError)
	AutoCorrection.WithLabelValues(page).Set(rep.Stats.AutoIEC)
	NextSleep.WithLabelValues(page).Set(d.Sleep.Seconds())
	if d.Reinitialized {
		SchedulerEvents.WithLabelValues(page, "reinit").Inc()
	}
	if d.Clamped {
		SchedulerEvents.WithLabelValues(page, "clamp").Inc()
	}
	if rep.Record != nil {
		RecordsTotal.WithLabelValues(page).Inc()
	}
}

var machineStates = []model.PowerState{
	model.StateUnknown, model.StateMachineDown, model.StateOSDown, model.StateOSUp, model.StateError,
}

// ObserveStatus sets the machine state gauge of a host.
func ObserveStatus(page, host string, s model.MachineStatus) {
	for _, st := range machineStates {
		v := 0.0
		if st == s.State {
			v = 1
		}
		MachineState.WithLabelValues(page, host, st.String()).Set(v)
	}
}

// ObserveAction counts a power action and its outcome.
func ObserveAction(host, action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PowerActions.WithLabelValues(host, action, result).Inc()
}
