package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dm/pmon/internal/model"
)

const (
	// NotAvailable is shown for hosts that are not polled.
	NotAvailable = "n/a"

	sinceLayout   = "2006/01/02 15:04:05"
	updatedLayout = "2006-01-02 15:04:05"
)

// FormatWatts formats a power value with comma-separated thousands and one
// decimal place. Example: 1204.34 → "1,204.3 W".
func FormatWatts(w float64) string {
	return formatCommaFloat(w) + " W"
}

// FormatHostPower renders a host's cell: the reading, "/* cause */" for a
// failed query, or "n/a" when the host is not active.
func FormatHostPower(h model.HostReading) string {
	switch {
	case !h.Active:
		return NotAvailable
	case h.Err != "":
		return "/* " + h.Err + " */"
	default:
		return FormatWatts(h.Watts)
	}
}

// FormatMachines formats the active host count. Example: 3 → "(3 machines)".
func FormatMachines(n int) string {
	return fmt.Sprintf("(%d machines)", n)
}

// FormatSeconds formats seconds with 3 decimals. Example: 5 → "5.000 sec.".
func FormatSeconds(s float64) string {
	return fmt.Sprintf("%.3f sec.", s)
}

// FormatSignedSeconds is FormatSeconds with an explicit sign.
func FormatSignedSeconds(s float64) string {
	return fmt.Sprintf("%+.3f sec.", s)
}

// FormatDuration formats a duration as seconds with 3 decimals.
func FormatDuration(d time.Duration) string {
	return FormatSeconds(d.Seconds())
}

// FormatStat renders an averager's effective/samples/total triple.
// Example: [8 10 42] → "8 eff. / 10 smpl. / 42 tot.".
func FormatStat(s [3]int) string {
	return fmt.Sprintf("%d eff. / %d smpl. / %d tot.", s[0], s[1], s[2])
}

// FormatSince formats the start of an auto refresh or recording run.
// The zero time returns "n/a".
func FormatSince(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format(sinceLayout)
}

// FormatUpdated formats a last-updated timestamp. The zero time returns "n/a".
func FormatUpdated(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format(updatedLayout)
}

// FormatStatus renders a machine status. Unknown renders as "".
func FormatStatus(s model.MachineStatus) string {
	switch s.State {
	case model.StateError:
		return s.Cause
	case model.StateMachineDown:
		return "Machine Down"
	case model.StateOSDown:
		return "Machine Up / OS Down"
	case model.StateOSUp:
		return "Machine Up / OS Up"
	default:
		return ""
	}
}

// FormatObserved renders when a status was taken, "" before the first refresh.
func FormatObserved(s model.MachineStatus) string {
	if !s.Observed() {
		return ""
	}
	return "Get status at " + s.ObservedAt.Format(sinceLayout)
}

// FormatNumber formats an integer with locale-style comma separators.
// Example: 12345678 → "12,345,678".
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return "-" + insertCommas(s[1:])
	}
	return insertCommas(s)
}

// formatCommaFloat formats a float with comma-separated thousands and one decimal place.
func formatCommaFloat(f float64) string {
	formatted := fmt.Sprintf("%.1f", f)
	sign := ""
	if len(formatted) > 0 && formatted[0] == '-' {
		sign = "-"
		formatted = formatted[1:]
	}
	parts := strings.SplitN(formatted, ".", 2)
	intPart := insertCommas(parts[0])
	if len(parts) == 2 {
		return sign + intPart + "." + parts[1]
	}
	return sign + intPart
}

// insertCommas inserts comma separators into a digit string every 3 digits from the right.
func insertCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var buf strings.Builder
	lead := n % 3
	if lead > 0 {
		buf.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(s[i : i+3])
	}
	return buf.String()
}
