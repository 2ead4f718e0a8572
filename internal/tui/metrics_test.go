package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/model"
)

func fixtureStats() engine.SchedulerStats {
	return engine.SchedulerStats{
		AutoRefresh:     true,
		Target:          5,
		LastUpdated:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		LastDuration:    0.8,
		LastInterval:    5.1,
		LastError:       -0.1,
		AvgDuration:     0.75,
		AvgInterval:     5.05,
		AvgError:        -0.05,
		AutoIEC:         -0.12,
		DurationHistory: []float64{0.7, 0.8, 0.75},
		IntervalHistory: []float64{5.2, 5.1, 5.05},
	}
}

func fixtureWattState() *wattState {
	st := &wattState{powerHistory: model.NewRing(historyLen), errorHistory: model.NewRing(historyLen)}
	for _, w := range []float64{170, 180, 175} {
		st.powerHistory.Push(w)
	}
	st.errorHistory.Push(-0.1)
	return st
}

func TestRenderMetricCard(t *testing.T) {
	result := stripANSI(renderMetricCard("Interval", "5.100 sec.", []float64{1, 2, 3}, 30, colorCyan, StyleDim))
	assert.Contains(t, result, "Interval")
	assert.Contains(t, result, "5.100 sec.")
	assert.Contains(t, result, "█")
}

func TestRenderMetricCard_MinWidthEnforced(t *testing.T) {
	result := renderMetricCard("Rate", "1.0", nil, 5, colorGreen, StyleDim)
	require.NotEmpty(t, result)
	assert.Contains(t, stripANSI(result), "Rate")
}

func TestRenderMetricsRow_BeforeFirstCycle(t *testing.T) {
	assert.Equal(t, "", renderMetricsRow(120, engine.SchedulerStats{}, fixtureWattState()))
}

func TestRenderMetricsRow_Wide(t *testing.T) {
	result := stripANSI(renderMetricsRow(120, fixtureStats(), fixtureWattState()))

	for _, want := range []string{"Control Loop", "Total Power", "175.0 W", "Interval", "5.100 sec.", "Duration", "0.800 sec.", "Interval Error", "-0.100 sec."} {
		assert.Contains(t, result, want)
	}
	// Label plus one row of bordered cards.
	assert.Equal(t, 6, strings.Count(result, "\n")+1)
}

func TestRenderMetricsRow_Narrow(t *testing.T) {
	result := stripANSI(renderMetricsRow(60, fixtureStats(), fixtureWattState()))
	assert.Contains(t, result, "Total Power")
	assert.Contains(t, result, "Interval Error")
	// Label plus two rows of bordered cards.
	assert.Equal(t, 11, strings.Count(result, "\n")+1)
}

func TestRenderMetricsRow_TooNarrow(t *testing.T) {
	assert.Equal(t, "", renderMetricsRow(10, fixtureStats(), fixtureWattState()))
}

func TestRenderOverview(t *testing.T) {
	reading := model.ClusterReading{TotalWatts: 1204.34, ActiveHosts: 3}
	result := stripANSI(renderOverview(120, reading, fixtureStats(), 42))

	for _, want := range []string{"1,204.3 W", "(3 machines)", "5.050 sec.", "0.750 sec.", "-0.120 sec.", "42", "Records"} {
		assert.Contains(t, result, want)
	}
}

func TestRenderMiniBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", renderMiniBar(50, 10))
	assert.Equal(t, "░░░░", renderMiniBar(-5, 4))
	assert.Equal(t, "████", renderMiniBar(150, 4))
	assert.Equal(t, "", renderMiniBar(50, 0))
}
