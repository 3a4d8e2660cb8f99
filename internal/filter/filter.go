// Package filter evaluates metadata predicates against the course catalog,
// producing the allow-set of course identifiers used to restrict retrieval.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/campusrag/advisor/internal/catalog"
)

// Predicates is the conjunction of active filter constraints for one turn.
// An empty field means the constraint is unset and matches everything; an
// entirely empty Predicates matches all courses.
type Predicates struct {
	Credits  string `json:"credits,omitempty"`
	Semester string `json:"semester,omitempty"`
	Language string `json:"language,omitempty"`
	Level    string `json:"level,omitempty"`
}

// Equal reports whether two predicate sets are identical. Used by the chat
// session to detect filter changes between turns.
func (p Predicates) Equal(other Predicates) bool {
	return p == other
}

// IsZero reports whether no constraint is set.
func (p Predicates) IsZero() bool {
	return p == Predicates{}
}

// String renders the active filters for prompts and logs. Unset constraints
// are shown as ANY so the model sees the full filter state.
func (p Predicates) String() string {
	norm := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "ANY"
		}
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("credits=%s, semester=%s, language=%s, level=%s",
		norm(p.Credits), norm(p.Semester), norm(p.Language), norm(p.Level))
}

// Apply returns the identifiers of courses satisfying every set constraint,
// in catalog order. Unset constraints are no-ops.
func (p Predicates) Apply(m *catalog.Metadata) []string {
	var ids []string
	for i := range m.Courses {
		if p.matches(&m.Courses[i]) {
			ids = append(ids, m.Courses[i].ID)
		}
	}
	return ids
}

func (p Predicates) matches(c *catalog.Course) bool {
	if p.Credits != "" && !creditsMatch(c.Credits, p.Credits) {
		return false
	}
	if p.Semester != "" && !stringMatch(c.Semester, p.Semester) {
		return false
	}
	if p.Language != "" && !stringMatch(c.Language, p.Language) {
		return false
	}
	if p.Level != "" && !levelMatch(c.Levels, p.Level) {
		return false
	}
	return true
}

// creditsMatch compares credit values numerically when both sides are
// numeric-coercible ("6" == "6.0" == 6), else falls back to exact trimmed
// string comparison. A course with a missing credit value never matches.
func creditsMatch(have, want string) bool {
	have = strings.TrimSpace(have)
	want = strings.TrimSpace(want)
	if have == "" {
		return false
	}

	hn, herr := strconv.ParseFloat(have, 64)
	wn, werr := strconv.ParseFloat(want, 64)
	if herr == nil && werr == nil {
		return hn == wn
	}
	return have == want
}

func stringMatch(have, want string) bool {
	have = strings.TrimSpace(have)
	if have == "" {
		return false
	}
	return have == strings.TrimSpace(want)
}

// levelMatch reports whether the requested level code appears anywhere in the
// course's delimited level set, case-insensitively.
func levelMatch(levelSet, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	for _, lv := range catalog.SplitLevels(levelSet) {
		if strings.ToLower(lv) == want {
			return true
		}
	}
	return false
}
