package engine

import (
	"fmt"
	"strings"

	"github.com/dm/pmon/internal/model"
)

// CalcAdvisories derives operator hints from the latest cycle.
// Returns an empty (non-nil) slice when there is nothing to report.
func CalcAdvisories(stats SchedulerStats, reading model.ClusterReading, d Decision) []model.Advisory {
	result := []model.Advisory{}

	// Polling cannot keep up with the requested cadence.
	if stats.AutoRefresh && stats.AvgDuration > stats.Target {
		result = append(result, model.Advisory{
			Severity: model.SeverityWarning,
			Category: model.CategoryTiming,
			Title:    "Duration exceeds target interval",
			Detail: fmt.Sprintf(
				"The actual duration (%.3f sec.) overcomes the target interval (%.3f sec.). Please consider increasing the target interval.",
				stats.AvgDuration, stats.Target),
		})
	}

	if d.Clamped {
		result = append(result, model.Advisory{
			Severity: model.SeverityWarning,
			Category: model.CategoryTiming,
			Title:    "Sleep clamped",
			Detail: fmt.Sprintf(
				"Target %.3f sec. with manual correction %.3f sec. gave a negative sleep. The automatic correction was reset.",
				stats.Target, stats.Manual),
		})
	}

	result = append(result, hostErrorAdvisories(reading)...)
	return result
}

func hostErrorAdvisories(reading model.ClusterReading) []model.Advisory {
	var active int
	var failed []string
	for _, h := range reading.Hosts {
		if !h.Active {
			continue
		}
		active++
		if h.Err != "" {
			failed = append(failed, h.Host)
		}
	}

	switch {
	case active == 0:
		return []model.Advisory{{
			Severity: model.SeverityNormal,
			Category: model.CategorySelection,
			Title:    "No hosts selected",
			Detail:   "Activate at least one host to measure its power consumption.",
		}}
	case len(failed) == active:
		return []model.Advisory{{
			Severity: model.SeverityCritical,
			Category: model.CategoryHostErrors,
			Title:    "All selected hosts failed",
			Detail:   fmt.Sprintf("No power reading from %s. The total is not meaningful.", strings.Join(failed, ", ")),
		}}
	case len(failed) > 0:
		return []model.Advisory{{
			Severity: model.SeverityWarning,
			Category: model.CategoryHostErrors,
			Title:    fmt.Sprintf("%d of %d hosts failed", len(failed), active),
			Detail:   fmt.Sprintf("Excluded from the total: %s.", strings.Join(failed, ", ")),
		}}
	}
	return nil
}
