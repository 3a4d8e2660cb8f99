// Package cleaner turns a raw university catalog export into the two tables
// the recommendation pipeline consumes: a compact metadata table for
// filtering and a denormalized document table for embedding. The column
// mapping, row prefilters and output names are config-driven because export
// formats drift between academic years.
package cleaner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Report summarizes one cleaning run.
type Report struct {
	InputRows         int            `json:"input_rows"`
	KeptRows          int            `json:"kept_rows"`
	Lang              string         `json:"lang"`
	Dropped           map[string]int `json:"dropped"`
	JSONFlattenedCols []string       `json:"json_flattened_cols"`
	DroppedColumns    []string       `json:"dropped_columns"`
	DocumentTextStats TextStats      `json:"document_text_length_stats"`
}

// TextStats describes document text lengths in runes.
type TextStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    int     `json:"min"`
	Median int     `json:"median"`
	Max    int     `json:"max"`
	Empty  int     `json:"empty"`
}

// sectionLabels maps section name to its heading per output language.
var sectionLabels = map[string]map[string]string{
	"title":             {"et": "Pealkiri", "en": "Title"},
	"description":       {"et": "Kirjeldus", "en": "Description"},
	"objectives":        {"et": "Eesmärgid", "en": "Objectives"},
	"learning_outcomes": {"et": "Õpiväljundid", "en": "Learning outcomes"},
	"prerequisites":     {"et": "Eeldusained", "en": "Prerequisites"},
}

// Run cleans the raw export at inPath according to cfg and writes the
// outputs under outDir. lang selects which language's text goes into the
// document blob: "et", "en" or "both".
func Run(inPath string, cfg *Config, lang, outDir string) (*Report, error) {
	t, err := LoadTable(inPath)
	if err != nil {
		return nil, err
	}

	report := &Report{
		InputRows: len(t.Rows),
		Lang:      lang,
		Dropped:   make(map[string]int),
	}

	applyPrefilters(t, &cfg.Prefilters, report)
	report.KeptRows = len(t.Rows)

	// Expand embedded-JSON columns before metadata selection so derived
	// columns like study_levels__codes can reference the flattened form.
	jsonCols := detectJSONColumns(t, &cfg.JSONFlatten)
	flattenColumns(t, jsonCols)
	report.JSONFlattenedCols = jsonCols

	report.DroppedColumns = dropGlobColumns(t, cfg.DropColumns)

	meta := buildMetadata(t, &cfg.Metadata)
	docs := buildDocuments(t, meta, &cfg.Documents, lang)
	report.DocumentTextStats = textStats(docs, "document_text")

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	if err := t.WriteFile(filepath.Join(outDir, cfg.Outputs.FullCleaned)); err != nil {
		return nil, err
	}
	if err := meta.WriteFile(filepath.Join(outDir, cfg.Outputs.Metadata)); err != nil {
		return nil, err
	}
	if err := docs.WriteFile(filepath.Join(outDir, cfg.Outputs.Documents)); err != nil {
		return nil, err
	}

	repData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, cfg.Outputs.Report), repData, 0o644); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}

	return report, nil
}

// applyPrefilters drops rows for non-day studies, over-long programmes and
// cancelled/deleted states, recording per-reason drop counts.
func applyPrefilters(t *Table, pf *Prefilters, report *Report) {
	if pf.StudyTypeCol != "" && t.HasCol(pf.StudyTypeCol) {
		report.Dropped["not_day_study"] = t.Filter(func(r int) bool {
			return t.Cell(r, pf.StudyTypeCol) == pf.DayStudyCode
		})
	} else {
		report.Dropped["not_day_study"] = 0
	}

	if pf.DurationCol != "" && t.HasCol(pf.DurationCol) {
		report.Dropped["duration_gt_max_or_missing"] = t.Filter(func(r int) bool {
			v, err := strconv.ParseFloat(t.Cell(r, pf.DurationCol), 64)
			return err == nil && v <= pf.MaxDurationSemesters
		})
	} else {
		report.Dropped["duration_gt_max_or_missing"] = 0
	}

	if pf.badState != nil && len(pf.StateCols) > 0 {
		report.Dropped["bad_state"] = t.Filter(func(r int) bool {
			for _, col := range pf.StateCols {
				if v := t.Cell(r, col); v != "" && pf.badState.MatchString(v) {
					return false
				}
			}
			return true
		})
	} else {
		report.Dropped["bad_state"] = 0
	}
}

// detectJSONColumns combines auto-detected and manually listed JSON columns.
func detectJSONColumns(t *Table, jf *JSONFlatten) []string {
	var cols []string
	seen := make(map[string]bool)
	if jf.AutoDetect {
		for _, col := range t.Header {
			if looksLikeJSONColumn(t, col, 30) {
				cols = append(cols, col)
				seen[col] = true
			}
		}
	}
	for _, col := range jf.Columns {
		if t.HasCol(col) && !seen[col] {
			cols = append(cols, col)
			seen[col] = true
		}
	}
	return cols
}

// dropGlobColumns removes columns whose names match any doublestar pattern.
func dropGlobColumns(t *Table, patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	toDrop := make(map[string]bool)
	for _, col := range t.Header {
		for _, pat := range patterns {
			ok, err := doublestar.Match(pat, col)
			if err == nil && ok {
				toDrop[col] = true
				break
			}
		}
	}
	removed := t.DropCols(toDrop)
	sort.Strings(removed)
	return removed
}

// buildMetadata selects the base fields plus any derived columns.
func buildMetadata(t *Table, cfg *Metadata) *Table {
	meta := t.Select(cfg.BaseFields)

	sl := cfg.Derived.StudyLevelsCodes
	if sl.Enabled && sl.SourceCol != "" {
		out := sl.OutputCol
		if out == "" {
			out = "study_levels__codes"
		}
		values := make([]string, len(t.Rows))
		// Prefer the flattened companion column when the source was a JSON
		// column expanded earlier in the run.
		src := sl.SourceCol
		if t.HasCol(src + "__codes") {
			src += "__codes"
		}
		for r := range t.Rows {
			values[r] = studyLevelCodes(t.Cell(r, src))
		}
		meta.SetCol(out, values)
	}

	return meta
}

// studyLevelCodes extracts a ';'-joined code list from either an already
// flat value or a raw JSON list of {code} objects.
func studyLevelCodes(raw string) string {
	obj, ok := parseJSONCell(raw)
	if !ok {
		return raw
	}
	set := make(map[string]bool)
	switch v := obj.(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if code, ok := m["code"]; ok {
					if s := strings.TrimSpace(fmt.Sprint(code)); s != "" {
						set[s] = true
					}
				}
			}
		}
	case map[string]any:
		if code, ok := v["code"]; ok {
			if s := strings.TrimSpace(fmt.Sprint(code)); s != "" {
				set[s] = true
			}
		}
	}
	return joinSorted(set)
}

// buildDocuments assembles the denormalized RAG text blob per course.
func buildDocuments(t *Table, meta *Table, cfg *Documents, lang string) *Table {
	docs := t.Select(cfg.Keys)
	for _, col := range cfg.KeysFromMetadata {
		if !meta.HasCol(col) || docs.HasCol(col) {
			continue
		}
		values := make([]string, len(meta.Rows))
		for r := range meta.Rows {
			values[r] = meta.Cell(r, col)
		}
		docs.SetCol(col, values)
	}

	texts := make([]string, len(t.Rows))
	for r := range t.Rows {
		texts[r] = buildText(t, r, cfg, lang)
	}
	docs.SetCol("document_text", texts)
	return docs
}

// buildText renders one course's labelled sections in the requested
// language, skipping empty sections.
func buildText(t *Table, row int, cfg *Documents, lang string) string {
	var parts []string
	add := func(label, content string) {
		if content != "" {
			parts = append(parts, label+": "+content)
		}
	}

	for _, section := range cfg.IncludeSections {
		fields, ok := cfg.SectionFields[section]
		if !ok {
			continue
		}
		labels := sectionLabels[section]
		et := t.firstNonEmpty(row, fields["et"])
		en := t.firstNonEmpty(row, fields["en"])

		switch lang {
		case "et":
			add(labels["et"], et)
		case "en":
			add(labels["en"], en)
		default:
			add(labels["et"], et)
			add(labels["en"], en)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// textStats summarizes the length distribution of a text column.
func textStats(t *Table, col string) TextStats {
	var lens []int
	stats := TextStats{}
	for r := range t.Rows {
		n := len([]rune(t.Cell(r, col)))
		if n == 0 {
			stats.Empty++
		}
		lens = append(lens, n)
	}
	stats.Count = len(lens)
	if stats.Count == 0 {
		return stats
	}

	sort.Ints(lens)
	sum := 0
	for _, n := range lens {
		sum += n
	}
	stats.Min = lens[0]
	stats.Max = lens[len(lens)-1]
	stats.Median = lens[len(lens)/2]
	stats.Mean = float64(sum) / float64(len(lens))
	return stats
}
