package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const tableRule = "─"

// column describes one table column. A positive max truncates wider cells.
type column struct {
	title string
	right bool
	max   int
}

// layoutTable renders a header, a rule and the rows. Widths are measured in
// terminal cells, so IPA symbols with combining marks stay aligned.
func layoutTable(cols []column, rows [][]string) []string {
	if len(cols) == 0 {
		return nil
	}
	cells := make([][]string, len(rows))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = runewidth.StringWidth(c.title)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(cols))
		for i, c := range cols {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if c.max > 0 {
				cell = runewidth.Truncate(cell, c.max, "…")
			}
			cells[r][i] = cell
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	titles := make([]string, len(cols))
	rule := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.title
		rule[i] = strings.Repeat(tableRule, widths[i])
	}
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, joinCells(cols, widths, titles), strings.Join(rule, " "))
	for _, row := range cells {
		lines = append(lines, joinCells(cols, widths, row))
	}
	return lines
}

func joinCells(cols []column, widths []int, cells []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c.right {
			parts[i] = runewidth.FillLeft(cells[i], widths[i])
		} else {
			parts[i] = runewidth.FillRight(cells[i], widths[i])
		}
	}
	return strings.TrimRight(strings.Join(parts, " "), " ")
}
