package testgen

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/campusrag/advisor/internal/filter"
)

// csvHeader matches the evaluation sheet layout the analysis tooling reads.
var csvHeader = []string{
	"ID",
	"Päring",
	"Filtrid",
	"Expected unique_ID (top_codes)",
	"Tulemus (PASS/FAIL)",
	"Märkus",
}

// WriteCSV writes the cases in the evaluation sheet layout.
func WriteCSV(w io.Writer, cases []Case) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing case header: %w", err)
	}
	for _, c := range cases {
		row := []string{
			c.ID,
			c.Query,
			c.Filters.String(),
			strings.Join(c.Expected, ", "),
			c.Result,
			c.Note,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing case %s: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads cases previously written by WriteCSV, so expectations can be
// filled into an existing sheet.
func ReadCSV(r io.Reader) ([]Case, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var cases []Case
	for _, row := range rows[1:] {
		c := Case{
			ID:      col(row, 0),
			Query:   col(row, 1),
			Filters: filter.Parse(col(row, 2)),
			Result:  col(row, 4),
			Note:    col(row, 5),
		}
		for _, code := range strings.Split(col(row, 3), ",") {
			if code = strings.TrimSpace(code); code != "" {
				c.Expected = append(c.Expected, code)
			}
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func col(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
