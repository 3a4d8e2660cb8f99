package cleaner

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is a header-indexed CSV table held in memory. Raw catalog exports
// are small enough (thousands of rows) that streaming is not worth the
// complexity.
type Table struct {
	Header []string
	Rows   [][]string
	colIdx map[string]int
}

// NewTable builds a table over the given header.
func NewTable(header []string) *Table {
	t := &Table{Header: header}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.colIdx = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, ok := t.colIdx[h]; !ok {
			t.colIdx[h] = i
		}
	}
}

// LoadTable reads a CSV file into memory. Short rows are padded so every row
// has a cell for every header column.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	t := NewTable(header)

	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s line %d: %w", path, line, err)
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec[:len(header)])
	}
	return t, nil
}

// Write writes the table as CSV.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to the given path.
func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return t.Write(f)
}

// HasCol reports whether the column exists.
func (t *Table) HasCol(name string) bool {
	_, ok := t.colIdx[name]
	return ok
}

// Cell returns the trimmed value at (row, column), or "" when the column is
// absent.
func (t *Table) Cell(row int, name string) string {
	i, ok := t.colIdx[name]
	if !ok || i >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][i])
}

// SetCol writes a full column, appending it when absent. values must have
// one entry per row.
func (t *Table) SetCol(name string, values []string) {
	if i, ok := t.colIdx[name]; ok {
		for r := range t.Rows {
			t.Rows[r][i] = values[r]
		}
		return
	}
	t.Header = append(t.Header, name)
	t.colIdx[name] = len(t.Header) - 1
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], values[r])
	}
}

// Filter keeps only the rows for which keep returns true, returning the
// number of rows dropped.
func (t *Table) Filter(keep func(row int) bool) int {
	kept := t.Rows[:0]
	dropped := 0
	for r := range t.Rows {
		if keep(r) {
			kept = append(kept, t.Rows[r])
		} else {
			dropped++
		}
	}
	t.Rows = kept
	return dropped
}

// Select returns a new table holding only the named columns, in the given
// order, skipping columns the table does not have.
func (t *Table) Select(cols []string) *Table {
	var present []string
	var idx []int
	for _, c := range cols {
		if i, ok := t.colIdx[c]; ok {
			present = append(present, c)
			idx = append(idx, i)
		}
	}

	out := NewTable(present)
	for _, row := range t.Rows {
		rec := make([]string, len(idx))
		for j, i := range idx {
			if i < len(row) {
				rec[j] = row[i]
			}
		}
		out.Rows = append(out.Rows, rec)
	}
	return out
}

// DropCols removes the named columns, returning those actually removed.
func (t *Table) DropCols(names map[string]bool) []string {
	var keptHeader []string
	var keptIdx []int
	var removed []string
	for i, h := range t.Header {
		if names[h] {
			removed = append(removed, h)
			continue
		}
		keptHeader = append(keptHeader, h)
		keptIdx = append(keptIdx, i)
	}
	if len(removed) == 0 {
		return nil
	}

	for r, row := range t.Rows {
		rec := make([]string, len(keptIdx))
		for j, i := range keptIdx {
			if i < len(row) {
				rec[j] = row[i]
			}
		}
		t.Rows[r] = rec
	}
	t.Header = keptHeader
	t.reindex()
	return removed
}

// firstNonEmpty returns the first non-empty value among the candidate
// columns for the row.
func (t *Table) firstNonEmpty(row int, candidates []string) string {
	for _, c := range candidates {
		if v := normalizeText(t.Cell(row, c)); v != "" {
			return v
		}
	}
	return ""
}

// normalizeText collapses internal whitespace and trims.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
