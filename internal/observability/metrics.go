package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClusterPowerWatts tracks the summed power of the included hosts.
	ClusterPowerWatts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_cluster_power_watts",
		Help: "Total power draw of the hosts included in the latest cycle",
	}, []string{"page"})

	// ClusterActiveHosts tracks how many hosts were included in the total.
	ClusterActiveHosts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_cluster_active_hosts",
		Help: "Number of hosts included in the latest total",
	}, []string{"page"})

	// HostPowerWatts tracks the latest reading per host.
	HostPowerWatts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_host_power_watts",
		Help: "Latest power reading of a host",
	}, []string{"page", "host"})

	// HostReadingErrors counts failed power readings per host.
	HostReadingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmon_host_reading_errors_total",
		Help: "Total number of failed power readings",
	}, []string{"page", "host"})

	// CycleDuration tracks how long each poll cycle takes.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pmon_cycle_duration_seconds",
		Help:    "Duration of one poll cycle",
		Buckets: prometheus.DefBuckets,
	}, []string{"page"})

	// RefreshInterval tracks the measured start-to-start interval.
	RefreshInterval = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_refresh_interval_seconds",
		Help: "Latest measured interval between cycle starts",
	}, []string{"page"})

	// IntervalError tracks target minus actual interval, averaged.
	IntervalError = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_interval_error_seconds",
		Help: "Averaged interval error (target - actual)",
	}, []string{"page"})

	// AutoCorrection tracks the accumulated automatic correction.
	AutoCorrection = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_auto_correction_seconds",
		Help: "Accumulated automatic interval error correction",
	}, []string{"page"})

	// NextSleep tracks the sleep decided for the next cycle.
	NextSleep = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_next_sleep_seconds",
		Help: "Sleep before the next cycle",
	}, []string{"page"})

	// SchedulerEvents counts reinitializations and clamps.
	SchedulerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmon_scheduler_events_total",
		Help: "Scheduler events by kind",
	}, []string{"page", "event"})

	// RecordsTotal counts recorded rows.
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmon_records_total",
		Help: "Total number of recorded rows",
	}, []string{"page"})

	// MachineState reports 1 for the current state of each host.
	MachineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pmon_machine_state",
		Help: "Machine status per host (1 for the current state)",
	}, []string{"page", "host", "state"})

	// PowerActions counts power actions by outcome.
	PowerActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmon_power_actions_total",
		Help: "Power actions issued by action and result",
	}, []string{"host", "action", "result"})
)
