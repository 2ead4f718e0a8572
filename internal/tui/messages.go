package tui

import (
	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/page"
)

// ReportMsg delivers a finished Watt page iteration.
type ReportMsg struct {
	Page   string
	Gen    int
	Report engine.Report
}

// TickMsg triggers the next scheduled iteration of a Watt page. Ticks from
// an older generation are stale and dropped.
type TickMsg struct {
	Page string
	Gen  int
}

// StatusMsg delivers the statuses of a Power page refresh.
type StatusMsg struct {
	Page     string
	Statuses []model.MachineStatus
}

// ActionDoneMsg signals that a power action finished.
type ActionDoneMsg struct {
	Page   string
	Host   string
	Action page.Action
	Err    error
}

// ExportMsg reports the outcome of a CSV export.
type ExportMsg struct {
	Path string
	Err  error
}
