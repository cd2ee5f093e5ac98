// Package table holds tabular query results and the operations the
// dashboard applies to them: filtering, console rendering and spreadsheet export.
package table

import (
	"errors"
	"strings"
)

// ErrNoData is returned when an empty table is exported
var ErrNoData = errors.New("no data to export")

// Table is a list of rows sharing the same columns
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given columns
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row. Short rows are padded, long rows truncated.
func (t *Table) Append(values ...string) {
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Index returns the position of a column, -1 if absent. Matching is case-insensitive.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

// Column returns all values of a column, nil if absent
func (t *Table) Column(column string) []string {
	idx := t.Index(column)
	if idx < 0 {
		return nil
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[idx])
	}
	return values
}

// Filter keeps the rows whose named columns contain the given substrings,
// ignoring case and surrounding spaces. Unknown columns and empty values
// are skipped.
func (t *Table) Filter(filters map[string]string) *Table {
	type cond struct {
		idx    int
		needle string
	}
	var conds []cond
	for column, value := range filters {
		needle := strings.ToLower(strings.TrimSpace(value))
		idx := t.Index(column)
		if needle == "" || idx < 0 {
			continue
		}
		conds = append(conds, cond{idx: idx, needle: needle})
	}

	out := New(t.Columns...)
	for _, row := range t.Rows {
		keep := true
		for _, c := range conds {
			if !strings.Contains(strings.ToLower(strings.TrimSpace(row[c.idx])), c.needle) {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Search keeps the rows where any column contains text, ignoring case
func (t *Table) Search(text string) *Table {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return t
	}
	out := New(t.Columns...)
	for _, row := range t.Rows {
		for _, v := range row {
			if strings.Contains(strings.ToLower(v), needle) {
				out.Rows = append(out.Rows, row)
				break
			}
		}
	}
	return out
}

// Select returns a table with only the named columns, in that order.
// Missing columns are kept as empty values.
func (t *Table) Select(columns ...string) *Table {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.Index(c)
	}
	out := New(columns...)
	for _, row := range t.Rows {
		values := make([]string, len(columns))
		for i, j := range idx {
			if j >= 0 {
				values[i] = row[j]
			}
		}
		out.Rows = append(out.Rows, values)
	}
	return out
}
