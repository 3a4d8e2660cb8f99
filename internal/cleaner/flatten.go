package cleaner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// flattened is the simplified form of one embedded-JSON cell.
type flattened struct {
	codes string // ';' joined distinct code/id/uuid values
	names string // ';' joined distinct name/title/label values
	count int
}

var (
	codeKeys = []string{"code", "id", "uuid"}
	nameKeys = []string{"name", "title", "label", "value", "text"}
)

// flattenValue simplifies one cell that may hold embedded JSON. Non-JSON
// cells flatten to an empty result.
func flattenValue(raw string) flattened {
	obj, ok := parseJSONCell(raw)
	if !ok {
		return flattened{}
	}

	switch v := obj.(type) {
	case []any:
		codeSet := map[string]bool{}
		nameSet := map[string]bool{}
		for _, item := range v {
			c, n := grabItem(item)
			if c != "" {
				codeSet[c] = true
			}
			if n != "" {
				nameSet[n] = true
			}
		}
		return flattened{
			codes: joinSorted(codeSet),
			names: joinSorted(nameSet),
			count: len(v),
		}
	case map[string]any:
		c, n := grabItem(v)
		if n == "" {
			var bits []string
			for _, k := range sortedMapKeys(v) {
				switch vv := v[k].(type) {
				case string:
					if strings.TrimSpace(vv) != "" {
						bits = append(bits, fmt.Sprintf("%s=%s", k, vv))
					}
				case float64, bool:
					bits = append(bits, fmt.Sprintf("%s=%v", k, vv))
				}
			}
			n = strings.Join(bits, ";")
		}
		return flattened{codes: c, names: n, count: 1}
	default:
		return flattened{names: strings.TrimSpace(fmt.Sprint(v)), count: 1}
	}
}

// grabItem extracts a code and a display name from one element.
func grabItem(item any) (code, name string) {
	m, ok := item.(map[string]any)
	if !ok {
		return "", strings.TrimSpace(fmt.Sprint(item))
	}
	for _, k := range codeKeys {
		if v, ok := m[k]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" && s != "<nil>" {
				code = s
				break
			}
		}
	}
	for _, k := range nameKeys {
		if v, ok := m[k]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" && s != "<nil>" {
				name = s
				break
			}
		}
	}
	return code, name
}

// parseJSONCell parses a cell as JSON if it looks like an object or array.
func parseJSONCell(raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if !(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) &&
		!(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) {
		return nil, false
	}
	var obj any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// looksLikeJSONColumn samples up to sampleN non-empty cells and reports
// whether enough of them parse as JSON containers.
func looksLikeJSONColumn(t *Table, col string, sampleN int) bool {
	var vals []string
	for r := range t.Rows {
		if len(vals) >= sampleN {
			break
		}
		if v := t.Cell(r, col); v != "" {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return false
	}

	hits := 0
	for _, v := range vals {
		if _, ok := parseJSONCell(v); ok {
			hits++
		}
	}
	threshold := len(vals) / 3
	if threshold > 5 {
		threshold = 5
	}
	if threshold < 2 {
		threshold = 2
	}
	return hits >= threshold
}

// flattenColumns expands each listed column into __codes, __names and
// __count companion columns.
func flattenColumns(t *Table, cols []string) {
	for _, col := range cols {
		codes := make([]string, len(t.Rows))
		names := make([]string, len(t.Rows))
		counts := make([]string, len(t.Rows))
		for r := range t.Rows {
			f := flattenValue(t.Cell(r, col))
			codes[r] = f.codes
			names[r] = f.names
			counts[r] = fmt.Sprint(f.count)
		}
		t.SetCol(col+"__codes", codes)
		t.SetCol(col+"__names", names)
		t.SetCol(col+"__count", counts)
	}
}

func joinSorted(set map[string]bool) string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return strings.Join(out, ";")
}

func sortedMapKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
