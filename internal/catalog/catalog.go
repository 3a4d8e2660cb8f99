package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Course is one metadata row. Attribute fields hold the raw cell text;
// an empty string means the value is missing, which is distinct from zero.
type Course struct {
	ID       string
	Code     string
	Title    string
	Credits  string
	Semester string
	Language string
	Levels   string // delimited study-level set, e.g. "bachelor;master"
}

// Document is one corpus row: the denormalized free-text blob for a course,
// keyed by the same identifier as its metadata row.
type Document struct {
	ID   string
	Code string
	Text string
}

// Metadata is the loaded course metadata table.
type Metadata struct {
	Courses []Course
	byID    map[string]int
}

// Corpus is the loaded document table. Order is preserved from the source
// file; embedding cache rows are positionally aligned with Docs.
type Corpus struct {
	Path string
	// TextColumn is the resolved source column name; it participates in the
	// embedding cache signature.
	TextColumn string
	Docs       []Document
	byID       map[string]int
}

// LoadMetadata reads the course metadata CSV. The identifier column is
// required; attribute columns are optional and resolved by candidate lists.
func LoadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading metadata header: %w", err)
	}

	idCol := firstExistingCol(header, idCandidates)
	if idCol < 0 {
		return nil, fmt.Errorf("metadata %s: no identifier column (expected one of %s)", path, strings.Join(idCandidates, ", "))
	}
	codeCol := firstExistingCol(header, codeCandidates)
	titleCol := firstExistingCol(header, titleCandidates)
	creditsCol := firstExistingCol(header, creditsCandidates)
	semesterCol := firstExistingCol(header, semesterCandidates)
	languageCol := firstExistingCol(header, languageCandidates)
	levelCol := firstExistingCol(header, levelCandidates)

	m := &Metadata{byID: make(map[string]int)}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading metadata line %d: %w", line, err)
		}

		id := strings.TrimSpace(cell(rec, idCol))
		if id == "" {
			continue
		}
		if _, dup := m.byID[id]; dup {
			return nil, fmt.Errorf("metadata %s: duplicate course id %q (line %d)", path, id, line)
		}

		m.Courses = append(m.Courses, Course{
			ID:       id,
			Code:     strings.TrimSpace(cell(rec, codeCol)),
			Title:    strings.TrimSpace(cell(rec, titleCol)),
			Credits:  strings.TrimSpace(cell(rec, creditsCol)),
			Semester: strings.TrimSpace(cell(rec, semesterCol)),
			Language: strings.TrimSpace(cell(rec, languageCol)),
			Levels:   strings.TrimSpace(cell(rec, levelCol)),
		})
		m.byID[id] = len(m.Courses) - 1
	}

	return m, nil
}

// LoadDocuments reads the document corpus CSV. Identifier and text columns
// are required; the course code column is optional.
func LoadDocuments(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening documents %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading documents header: %w", err)
	}

	idCol := firstExistingCol(header, idCandidates)
	if idCol < 0 {
		return nil, fmt.Errorf("documents %s: no identifier column (expected one of %s)", path, strings.Join(idCandidates, ", "))
	}
	textCol := firstExistingCol(header, textCandidates)
	if textCol < 0 {
		return nil, fmt.Errorf("documents %s: no text column (expected one of %s)", path, strings.Join(textCandidates, ", "))
	}
	codeCol := firstExistingCol(header, codeCandidates)

	c := &Corpus{
		Path:       path,
		TextColumn: header[textCol],
		byID:       make(map[string]int),
	}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading documents line %d: %w", line, err)
		}

		id := strings.TrimSpace(cell(rec, idCol))
		if id == "" {
			continue
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("documents %s: duplicate course id %q (line %d)", path, id, line)
		}

		c.byID[id] = len(c.Docs)
		c.Docs = append(c.Docs, Document{
			ID:   id,
			Code: strings.TrimSpace(cell(rec, codeCol)),
			Text: cell(rec, textCol),
		})
	}

	return c, nil
}

func cell(rec []string, col int) string {
	if col < 0 || col >= len(rec) {
		return ""
	}
	return rec[col]
}

// Get returns the course with the given id, or nil.
func (m *Metadata) Get(id string) *Course {
	if i, ok := m.byID[id]; ok {
		return &m.Courses[i]
	}
	return nil
}

// Len returns the number of courses in the store.
func (m *Metadata) Len() int { return len(m.Courses) }

// Len returns the number of documents in the corpus.
func (c *Corpus) Len() int { return len(c.Docs) }

// Get returns the document with the given id, or nil.
func (c *Corpus) Get(id string) *Document {
	if i, ok := c.byID[id]; ok {
		return &c.Docs[i]
	}
	return nil
}

// GetByCode returns the first document with the given course code, or nil.
func (c *Corpus) GetByCode(code string) *Document {
	for i := range c.Docs {
		if c.Docs[i].Code == code {
			return &c.Docs[i]
		}
	}
	return nil
}

// IDs returns document identifiers in corpus order.
func (c *Corpus) IDs() []string {
	ids := make([]string, len(c.Docs))
	for i, d := range c.Docs {
		ids[i] = d.ID
	}
	return ids
}

// Texts returns document bodies in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.Docs))
	for i, d := range c.Docs {
		texts[i] = d.Text
	}
	return texts
}

// SplitLevels splits a delimited study-level set on semicolons and commas,
// trimming whitespace and dropping empty parts.
func SplitLevels(s string) []string {
	var parts []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ','
	}) {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// FilterValues enumerates the distinct values available for each filterable
// attribute, sorted. Level sets are exploded into individual codes.
type FilterValues struct {
	Credits   []string `json:"credits"`
	Semesters []string `json:"semesters"`
	Languages []string `json:"languages"`
	Levels    []string `json:"levels"`
}

// DistinctFilterValues scans the metadata table and collects the value sets
// used to populate filter choices.
func (m *Metadata) DistinctFilterValues() FilterValues {
	credits := map[string]bool{}
	semesters := map[string]bool{}
	languages := map[string]bool{}
	levels := map[string]bool{}

	for _, c := range m.Courses {
		if c.Credits != "" {
			credits[c.Credits] = true
		}
		if c.Semester != "" {
			semesters[c.Semester] = true
		}
		if c.Language != "" {
			languages[c.Language] = true
		}
		for _, lv := range SplitLevels(c.Levels) {
			levels[strings.ToLower(lv)] = true
		}
	}

	return FilterValues{
		Credits:   sortedKeys(credits),
		Semesters: sortedKeys(semesters),
		Languages: sortedKeys(languages),
		Levels:    sortedKeys(levels),
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
