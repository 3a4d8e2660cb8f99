// Package testgen synthesizes evaluation cases for the recommendation
// pipeline: it samples real courses from the metadata table, phrases an
// Estonian user query around each course's topic and constraints, and can
// fill in the expected top-k course codes by running retrieval.
package testgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/retriever"
)

// Case is one synthesized evaluation case. Expected stays empty until
// FillExpected runs; Result and Note are free-form columns for the reviewer.
type Case struct {
	ID       string
	Query    string
	Filters  filter.Predicates
	Expected []string
	Result   string
	Note     string
}

const caseNote = "Expected on valitud metadata-st sama filtrikombinatsiooni alt (mitte LLM output)."

// Generate samples n cases from the metadata table. The same seed over the
// same table yields the same cases.
func Generate(meta *catalog.Metadata, n int, seed int64) ([]Case, error) {
	candidates := sampleable(meta)
	if len(candidates) == 0 {
		return nil, errors.New("no course rows with credits, semester, language and code")
	}

	rng := rand.New(rand.NewSource(seed))
	cases := make([]Case, 0, n)
	for i := 1; i <= n; i++ {
		course := candidates[rng.Intn(len(candidates))]

		preds := filter.Predicates{
			Credits:  normCredits(course.Credits),
			Semester: normEnum(course.Semester, "autumn", "spring"),
			Language: normEnum(course.Language, "et", "en"),
			Level:    pickLevel(course.Levels),
		}

		cases = append(cases, Case{
			ID:      fmt.Sprintf("R%02d", i),
			Query:   makeQuery(rng, preds, course.Title),
			Filters: preds,
			Note:    caseNote,
		})
	}
	return cases, nil
}

// FillExpected runs each case through filtering plus retrieval and records
// the deduplicated top-k course codes. Cases whose filters match nothing
// keep an empty expectation.
func FillExpected(ctx context.Context, meta *catalog.Metadata, r *retriever.Retriever, cases []Case, k int) error {
	for i := range cases {
		allowIDs := cases[i].Filters.Apply(meta)
		if len(allowIDs) == 0 {
			cases[i].Expected = nil
			continue
		}

		matches, err := r.Retrieve(ctx, cases[i].Query, allowIDs, k)
		if errors.Is(err, retriever.ErrNoResults) {
			cases[i].Expected = nil
			continue
		}
		if err != nil {
			return fmt.Errorf("filling case %s: %w", cases[i].ID, err)
		}

		var codes []string
		seen := make(map[string]bool)
		for _, m := range matches {
			if m.Doc.Code == "" || seen[m.Doc.Code] {
				continue
			}
			seen[m.Doc.Code] = true
			codes = append(codes, m.Doc.Code)
		}
		cases[i].Expected = codes
	}
	return nil
}

// sampleable returns the courses complete enough to anchor a test case.
func sampleable(meta *catalog.Metadata) []*catalog.Course {
	var out []*catalog.Course
	for i := range meta.Courses {
		c := &meta.Courses[i]
		if c.Code == "" || c.Credits == "" || c.Semester == "" || c.Language == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// normCredits coerces a credit value to its integer rendering, or unset when
// the cell is not numeric.
func normCredits(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return ""
	}
	return fmt.Sprintf("%d", int(v))
}

// normEnum lowercases the value and keeps it only if it is one of the
// allowed enum values.
func normEnum(s string, allowed ...string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return ""
}

// pickLevel selects one study level from a delimited set, preferring the
// canonical degree levels in order.
func pickLevel(levels string) string {
	parts := catalog.SplitLevels(levels)
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	for _, cand := range []string{"bachelor", "master", "doctoral"} {
		for _, p := range parts {
			if p == cand {
				return cand
			}
		}
	}
	return ""
}
