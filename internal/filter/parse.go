package filter

import "strings"

// Parse reconstructs a predicate set from its String rendering
// ("credits=6, semester=autumn, language=ANY, level=ANY"). ANY and unknown
// keys map to unset. The inverse of String up to unset-vs-ANY.
func Parse(s string) Predicates {
	var p Predicates
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" || strings.EqualFold(value, "ANY") {
			continue
		}
		switch key {
		case "credits":
			p.Credits = value
		case "semester":
			p.Semester = value
		case "language":
			p.Language = value
		case "level":
			p.Level = value
		}
	}
	return p
}
