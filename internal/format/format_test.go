package format

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dm/pmon/internal/model"
)

func TestFormatWatts(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"zero", 0, "0.0 W"},
		{"small", 142, "142.0 W"},
		{"rounding", 99.96, "100.0 W"},
		{"thousands", 1204.34, "1,204.3 W"},
		{"large", 1234567.8, "1,234,567.8 W"},
		{"negative", -1500, "-1,500.0 W"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatWatts(tc.input))
		})
	}
}

func TestFormatHostPower(t *testing.T) {
	tests := []struct {
		name string
		in   model.HostReading
		want string
	}{
		{"inactive", model.HostReading{Host: "a", Watts: 10}, "n/a"},
		{"error", model.HostReading{Host: "a", Active: true, Err: "connection error: timeout"}, "/* connection error: timeout */"},
		{"ok", model.HostReading{Host: "a", Active: true, Included: true, Watts: 230}, "230.0 W"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatHostPower(tc.in))
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "5.000 sec.", FormatSeconds(5))
	assert.Equal(t, "0.123 sec.", FormatSeconds(0.1234))
	assert.Equal(t, "-0.200 sec.", FormatSignedSeconds(-0.2))
	assert.Equal(t, "+1.500 sec.", FormatSignedSeconds(1.5))
	assert.Equal(t, "1.250 sec.", FormatDuration(1250*time.Millisecond))
}

func TestFormatMachinesAndStat(t *testing.T) {
	assert.Equal(t, "(3 machines)", FormatMachines(3))
	assert.Equal(t, "8 eff. / 10 smpl. / 42 tot.", FormatStat([3]int{8, 10, 42}))
}

func TestFormatTimes(t *testing.T) {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	assert.Equal(t, "2026/02/03 04:05:06", FormatSince(ts))
	assert.Equal(t, "2026-02-03 04:05:06", FormatUpdated(ts))
	assert.Equal(t, "n/a", FormatSince(time.Time{}))
	assert.Equal(t, "n/a", FormatUpdated(time.Time{}))
}

func TestFormatStatus(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	tests := []struct {
		in       model.MachineStatus
		want     string
		observed string
	}{
		{model.MachineStatus{}, "", ""},
		{model.MachineStatus{State: model.StateMachineDown, ObservedAt: at}, "Machine Down", "Get status at 2026/02/03 04:05:06"},
		{model.MachineStatus{State: model.StateOSDown, ObservedAt: at}, "Machine Up / OS Down", "Get status at 2026/02/03 04:05:06"},
		{model.MachineStatus{State: model.StateOSUp, ObservedAt: at}, "Machine Up / OS Up", "Get status at 2026/02/03 04:05:06"},
		{model.MachineStatus{State: model.StateError, Cause: "protocol error: 0xc1", ObservedAt: at}, "protocol error: 0xc1", "Get status at 2026/02/03 04:05:06"},
	}
	for _, tc := range tests {
		t.Run(tc.in.State.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, FormatStatus(tc.in))
			assert.Equal(t, tc.observed, FormatObserved(tc.in))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name  string
		input int64
		want  string
	}{
		{"zero", 0, "0"},
		{"hundreds", 999, "999"},
		{"thousands", 1000, "1,000"},
		{"millions", 12345678, "12,345,678"},
		{"negative", -1234, "-1,234"},
		{"min_int64", math.MinInt64, "-9,223,372,036,854,775,808"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatNumber(tc.input))
		})
	}
}
