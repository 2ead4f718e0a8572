package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// columnDef describes a single column in a table.
type columnDef struct {
	Title string
	Width int
	Align string // "left", "right"
}

// tableModel is the cursor, paging and filter state of a host table.
type tableModel struct {
	columns   []columnDef
	cursor    int // index into the filtered rows
	page      int // 0-indexed
	pageSize  int // default 15
	search    string
	searching bool
	input     textinput.Model
}

// newTableModel initialises a tableModel with sensible defaults.
func newTableModel(cols []columnDef) tableModel {
	ti := textinput.New()
	ti.Placeholder = "filter hosts..."
	ti.CharLimit = 80
	return tableModel{
		columns:  cols,
		pageSize: 15,
		input:    ti,
	}
}

// Update handles keyboard input for the cursor, pagination and search.
// total is the number of rows after filtering. handled is false when the
// key is not a table key and should be processed by the page.
func (t tableModel) Update(msg tea.KeyMsg, total int) (tableModel, tea.Cmd, bool) {
	if t.searching {
		switch {
		case key.Matches(msg, keys.Escape):
			t.searching = false
			t.input.Blur()
			if t.input.Value() == "" {
				t.search = ""
			}
			return t, nil, true
		case msg.String() == "enter":
			t.search = t.input.Value()
			t.searching = false
			t.input.Blur()
			t.cursor, t.page = 0, 0
			return t, nil, true
		default:
			var cmd tea.Cmd
			t.input, cmd = t.input.Update(msg)
			return t, cmd, true
		}
	}

	switch {
	case key.Matches(msg, keys.Search):
		t.searching = true
		t.input.SetValue(t.search)
		t.input.Focus()
		return t, textinput.Blink, true
	case key.Matches(msg, keys.Escape):
		t.search = ""
		t.input.SetValue("")
		t.cursor, t.page = 0, 0
		return t, nil, true
	case key.Matches(msg, keys.Up):
		t.moveCursor(-1, total)
		return t, nil, true
	case key.Matches(msg, keys.Down):
		t.moveCursor(1, total)
		return t, nil, true
	case key.Matches(msg, keys.PageUp):
		t.moveCursor(-t.pageSize, total)
		return t, nil, true
	case key.Matches(msg, keys.PageDown):
		t.moveCursor(t.pageSize, total)
		return t, nil, true
	}
	return t, nil, false
}

// moveCursor moves the cursor by delta rows and keeps the page in sync.
func (t *tableModel) moveCursor(delta, total int) {
	t.cursor += delta
	t.clamp(total)
}

// clamp keeps cursor and page within bounds for total rows.
func (t *tableModel) clamp(total int) {
	if t.cursor >= total {
		t.cursor = total - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	if t.pageSize > 0 {
		t.page = t.cursor / t.pageSize
	}
	t.clampPage(total)
}

// filter returns the indices of names matching the current search,
// case-insensitively.
func (t tableModel) filter(names []string) []int {
	q := strings.ToLower(t.search)
	out := make([]int, 0, len(names))
	for i, n := range names {
		if q == "" || strings.Contains(strings.ToLower(n), q) {
			out = append(out, i)
		}
	}
	return out
}

// selected returns the row index under the cursor, or -1 when empty.
func (t tableModel) selected(indices []int) int {
	if t.cursor < 0 || t.cursor >= len(indices) {
		return -1
	}
	return indices[t.cursor]
}

// render draws the header and the current page of rows. rows are indexed
// by the original row index; indices is the filtered order.
func (t tableModel) render(rows [][]string, indices []int) string {
	var lines []string
	if t.searching {
		lines = append(lines, t.input.View())
	} else if t.search != "" {
		lines = append(lines, StyleDim.Render("filter: "+t.search+"  (esc to clear)"))
	}

	header := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = StyleTableHeader.Render(cell(c, c.Title))
	}
	lines = append(lines, strings.Join(header, " "))

	start := t.page * t.pageSize
	for pos, idx := range currentPageIndices(indices, t.page, t.pageSize) {
		cells := make([]string, len(t.columns))
		for i, c := range t.columns {
			v := ""
			if i < len(rows[idx]) {
				v = rows[idx][i]
			}
			cells[i] = cell(c, v)
		}
		line := strings.Join(cells, " ")
		switch {
		case start+pos == t.cursor:
			line = StyleTableCursor.Render(line)
		case pos%2 == 1:
			line = StyleTableRowAlt.Render(line)
		default:
			line = StyleTableRow.Render(line)
		}
		lines = append(lines, line)
	}

	if pc := pageCount(len(indices), t.pageSize); pc > 1 {
		lines = append(lines, StyleDim.Render(pageLabel(t.page, pc)))
	}
	return strings.Join(lines, "\n")
}

// cell pads or truncates v to the column width. Styled values are measured
// by their visible width.
func cell(c columnDef, v string) string {
	w := lipgloss.Width(v)
	if w > c.Width {
		v = lipgloss.NewStyle().MaxWidth(c.Width).Render(v)
		w = lipgloss.Width(v)
	}
	pad := strings.Repeat(" ", max(0, c.Width-w))
	if c.Align == "right" {
		return pad + v
	}
	return v + pad
}

// truncateName shortens s to maxWidth terminal columns, ending in "..." when
// cut. Wide characters count as two columns.
func truncateName(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

func pageLabel(page, count int) string {
	return "page " + strconv.Itoa(page+1) + "/" + strconv.Itoa(count) + "  pgup/pgdn"
}

// pageCount returns the total number of pages for totalRows rows at pageSize rows per page.
// Always at least 1.
func pageCount(totalRows, pageSize int) int {
	if totalRows == 0 || pageSize <= 0 {
		return 1
	}
	c := totalRows / pageSize
	if totalRows%pageSize != 0 {
		c++
	}
	return c
}

// currentPageIndices returns the slice of row indices visible on the current page.
// allIndices is typically [0, 1, 2, ... n-1] or a pre-filtered subset.
func currentPageIndices(allIndices []int, page, pageSize int) []int {
	if pageSize <= 0 || len(allIndices) == 0 {
		return allIndices
	}
	start := page * pageSize
	if start >= len(allIndices) {
		start = 0
	}
	end := start + pageSize
	if end > len(allIndices) {
		end = len(allIndices)
	}
	return allIndices[start:end]
}

// clampPage ensures the page index stays within valid bounds given the total
// number of rows and the configured pageSize.
func (t *tableModel) clampPage(totalRows int) {
	pc := pageCount(totalRows, t.pageSize)
	if t.page >= pc {
		t.page = pc - 1
	}
	if t.page < 0 {
		t.page = 0
	}
}
