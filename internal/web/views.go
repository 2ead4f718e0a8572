package web

import (
	"time"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/format"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/page"
)

type pageSummary struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

type failureView struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type pagesView struct {
	Pages    []pageSummary `json:"pages"`
	Failures []failureView `json:"failures,omitempty"`
}

func newPagesView(reg *page.Registry) pagesView {
	v := pagesView{Pages: []pageSummary{{Key: reg.Home.Key(), Title: reg.Home.Title(), Kind: "home"}}}
	for i := range reg.Watt {
		w, p := reg.Watt[i], reg.Power[i]
		v.Pages = append(v.Pages,
			pageSummary{Key: w.Key(), Title: w.Title(), Kind: "watt"},
			pageSummary{Key: p.Key(), Title: p.Title(), Kind: "power"},
		)
	}
	for _, f := range reg.Failures {
		v.Failures = append(v.Failures, failureView{File: f.File, Error: f.Err.Error()})
	}
	return v
}

type controlsView struct {
	AutoRefresh bool     `json:"auto_refresh"`
	Target      float64  `json:"target"`
	Manual      float64  `json:"manual"`
	AutoCorrect bool     `json:"auto_correct"`
	Record      bool     `json:"record"`
	Selection   []string `json:"selection"`
}

func newControlsView(c engine.Controls) controlsView {
	sel := c.Selection
	if sel == nil {
		sel = []string{}
	}
	return controlsView{
		AutoRefresh: c.AutoRefresh,
		Target:      c.Target.Seconds(),
		Manual:      c.Manual.Seconds(),
		AutoCorrect: c.AutoCorrect,
		Record:      c.Record,
		Selection:   sel,
	}
}

type hostReadingView struct {
	Host    string   `json:"host"`
	Active  bool     `json:"active"`
	Watts   *float64 `json:"watts"`
	Error   string   `json:"error,omitempty"`
	Display string   `json:"display"`
}

type readingView struct {
	Hosts       []hostReadingView `json:"hosts"`
	TotalWatts  float64           `json:"total_watts"`
	ActiveHosts int               `json:"active_hosts"`
	Total       string            `json:"total"`
	Machines    string            `json:"machines"`
	PolledAt    time.Time         `json:"polled_at"`
}

func newReadingView(r model.ClusterReading) readingView {
	v := readingView{
		Hosts:       make([]hostReadingView, len(r.Hosts)),
		TotalWatts:  r.TotalWatts,
		ActiveHosts: r.ActiveHosts,
		Total:       format.FormatWatts(r.TotalWatts),
		Machines:    format.FormatMachines(r.ActiveHosts),
		PolledAt:    r.PolledAt,
	}
	for i, h := range r.Hosts {
		hv := hostReadingView{Host: h.Host, Active: h.Active, Error: h.Err, Display: format.FormatHostPower(h)}
		if h.Included {
			w := h.Watts
			hv.Watts = &w
		}
		v.Hosts[i] = hv
	}
	return v
}

type statsView struct {
	Since        string  `json:"since"`
	LastUpdated  string  `json:"last_updated"`
	LastDuration float64 `json:"last_duration"`
	LastInterval float64 `json:"last_interval"`
	LastError    float64 `json:"last_error"`
	AvgDuration  float64 `json:"avg_duration"`
	AvgInterval  float64 `json:"avg_interval"`
	AvgError     float64 `json:"avg_error"`
	AutoIEC      float64 `json:"auto_iec_amount"`
	DurationStat string  `json:"duration_stat"`
	IntervalStat string  `json:"interval_stat"`
	ErrorStat    string  `json:"error_stat"`
}

func newStatsView(s engine.SchedulerStats) statsView {
	return statsView{
		Since:        format.FormatSince(s.Since),
		LastUpdated:  format.FormatUpdated(s.LastUpdated),
		LastDuration: s.LastDuration,
		LastInterval: s.LastInterval,
		LastError:    s.LastError,
		AvgDuration:  s.AvgDuration,
		AvgInterval:  s.AvgInterval,
		AvgError:     s.AvgError,
		AutoIEC:      s.AutoIEC,
		DurationStat: format.FormatStat(s.DurationStat),
		IntervalStat: format.FormatStat(s.IntervalStat),
		ErrorStat:    format.FormatStat(s.ErrorStat),
	}
}

type advisoryView struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
}

func newAdvisoryViews(as []model.Advisory) []advisoryView {
	out := make([]advisoryView, len(as))
	for i, a := range as {
		out[i] = advisoryView{Severity: a.Severity.String(), Category: a.Category.String(), Title: a.Title, Detail: a.Detail}
	}
	return out
}

type reportView struct {
	Reading    readingView    `json:"reading"`
	Stats      statsView      `json:"stats"`
	Sleep      float64        `json:"sleep"`
	Reschedule bool           `json:"reschedule"`
	Recorded   *int64         `json:"recorded_id,omitempty"`
	Advisories []advisoryView `json:"advisories"`
}

func newReportView(rep engine.Report) reportView {
	v := reportView{
		Reading:    newReadingView(rep.Reading),
		Stats:      newStatsView(rep.Stats),
		Sleep:      rep.Decision.Sleep.Seconds(),
		Reschedule: rep.Decision.Reschedule,
		Advisories: newAdvisoryViews(rep.Advisories),
	}
	if rep.Record != nil {
		id := rep.Record.ID
		v.Recorded = &id
	}
	return v
}

type recordsView struct {
	Count    int64  `json:"count"`
	Since    string `json:"since"`
	Filename string `json:"filename"`
}

type hostView struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Note     string `json:"note,omitempty"`
	Disabled bool   `json:"disabled"`
	Active   bool   `json:"active"`
}

type wattView struct {
	Key      string       `json:"key"`
	Title    string       `json:"title"`
	Note     string       `json:"note,omitempty"`
	Running  bool         `json:"running"`
	Controls controlsView `json:"controls"`
	Hosts    []hostView   `json:"hosts"`
	Records  recordsView  `json:"records"`
	Stats    statsView    `json:"stats"`
	Last     *reportView  `json:"last,omitempty"`
}

func newWattView(w *page.WattPage) wattView {
	ctl := w.Controls()
	active := ctl.Active()
	v := wattView{
		Key:      w.Key(),
		Title:    w.Title(),
		Note:     w.Cluster.Note,
		Running:  w.Running(),
		Controls: newControlsView(ctl),
		Records: recordsView{
			Count:    w.Records.Count(),
			Since:    format.FormatSince(w.Records.Since()),
			Filename: w.Records.Filename(),
		},
		Stats: newStatsView(w.Runner.Scheduler().Stats()),
	}
	for _, h := range w.Cluster.Hosts {
		v.Hosts = append(v.Hosts, hostView{Name: h.Name, IP: h.IP, Note: h.Note, Disabled: h.Disabled, Active: active[h.Name]})
	}
	if rep := w.Last(); rep != nil {
		rv := newReportView(*rep)
		v.Last = &rv
	}
	return v
}

type statusView struct {
	Host     string    `json:"host"`
	State    string    `json:"state"`
	Display  string    `json:"display"`
	Cause    string    `json:"cause,omitempty"`
	Observed time.Time `json:"observed_at,omitzero"`
}

func newStatusView(host string, s model.MachineStatus) statusView {
	return statusView{Host: host, State: s.State.String(), Display: format.FormatStatus(s), Cause: s.Cause, Observed: s.ObservedAt}
}

type machineView struct {
	statusView
	IP          string `json:"ip"`
	MgmtURL     string `json:"mgmt_url"`
	Note        string `json:"note,omitempty"`
	Disabled    bool   `json:"disabled"`
	CanStart    bool   `json:"can_start"`
	CanShutdown bool   `json:"can_shutdown"`
	CanReset    bool   `json:"can_reset"`
}

type powerView struct {
	Key        string        `json:"key"`
	Title      string        `json:"title"`
	Note       string        `json:"note,omitempty"`
	AutoStatus bool          `json:"auto_status"`
	Machines   []machineView `json:"machines"`
}

func newPowerView(p *page.PowerPage) powerView {
	v := powerView{Key: p.Key(), Title: p.Title(), Note: p.Cluster.Note, AutoStatus: p.AutoStatus()}
	for _, r := range p.Resolvers {
		h := r.Host()
		v.Machines = append(v.Machines, machineView{
			statusView:  newStatusView(h.Name, r.Status()),
			IP:          h.IP,
			MgmtURL:     h.MgmtURL(),
			Note:        h.Note,
			Disabled:    h.Disabled,
			CanStart:    r.CanStart(),
			CanShutdown: r.CanShutdown(),
			CanReset:    r.CanReset(),
		})
	}
	return v
}

type actionView struct {
	Host   string    `json:"host"`
	Action string    `json:"action"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}
