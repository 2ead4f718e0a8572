package tui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline draws the newest width values as block characters, padded
// on the left when there are fewer.
//
// The bars span the visible window from its smallest non-negative value to
// its largest, so an interval hovering around 5 s still shows its drift.
// Negative values sit on the floor, and a window with no positive value is
// drawn flat.
func RenderSparkline(values []float64, width int, color lipgloss.Color) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat(" ", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	lo := max(slices.Min(values), 0)
	hi := slices.Max(values)
	top := len(sparkBlocks) - 1
	for _, v := range values {
		sb.WriteRune(sparkBlocks[level(v, lo, hi, top)])
	}
	return lipgloss.NewStyle().Foreground(color).Render(sb.String())
}

// level maps v onto 0..top within [lo, hi].
func level(v, lo, hi float64, top int) int {
	switch {
	case hi <= 0 || (v <= lo && hi > lo):
		return 0
	case hi == lo:
		return top
	}
	idx := int((v - lo) / (hi - lo) * float64(top))
	return min(max(idx, 0), top)
}
