package testgen

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embcache"
	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/retriever"
)

func loadTestMetadata(t *testing.T) *catalog.Metadata {
	t.Helper()
	content := "course_uuid,code,title,credits,semester,language,study_levels__codes\n" +
		"A,LTAT.01,Sissejuhatus programmeerimisse,6,autumn,et,bachelor\n" +
		"B,LTAT.02,Masinõppe meetodid,6,autumn,en,master;doctoral\n" +
		"C,FLKU.03,Eesti kirjanduse ajalugu,3,spring,et,bachelor\n" +
		"D,MTMS.04,,6,,et,bachelor\n" // incomplete: no semester

	path := filepath.Join(t.TempDir(), "meta.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing metadata: %v", err)
	}
	meta, err := catalog.LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	return meta
}

func TestGenerateDeterministic(t *testing.T) {
	meta := loadTestMetadata(t)

	first, err := Generate(meta, 5, 123)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := Generate(meta, 5, 123)
	if err != nil {
		t.Fatalf("Generate again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("same seed produced different cases")
	}

	other, err := Generate(meta, 5, 124)
	if err != nil {
		t.Fatalf("Generate other seed: %v", err)
	}
	if reflect.DeepEqual(first, other) {
		t.Error("different seeds produced identical cases")
	}
}

func TestGenerateCaseShape(t *testing.T) {
	meta := loadTestMetadata(t)

	cases, err := Generate(meta, 10, 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(cases) != 10 {
		t.Fatalf("got %d cases", len(cases))
	}
	for i, c := range cases {
		if c.ID != fmt.Sprintf("R%02d", i+1) {
			t.Errorf("case %d ID = %q", i, c.ID)
		}
		if !strings.Contains(c.Query, "kursust") {
			t.Errorf("case %s query looks wrong: %q", c.ID, c.Query)
		}
		if c.Filters.IsZero() {
			t.Errorf("case %s sampled with no constraints", c.ID)
		}
		// The incomplete course must never anchor a case.
		if c.Filters.Credits == "" && c.Filters.Semester == "" {
			t.Errorf("case %s anchored on incomplete row: %+v", c.ID, c.Filters)
		}
		if len(c.Expected) != 0 {
			t.Errorf("case %s has expectation before FillExpected", c.ID)
		}
	}
}

func TestGenerateEmptyCatalog(t *testing.T) {
	if _, err := Generate(&catalog.Metadata{}, 3, 1); err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestExtractKeywords(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	kws := extractKeywords(rng, "Sissejuhatus masinõppesse ja andmeteadusesse", 2)
	if len(kws) != 2 {
		t.Fatalf("keywords = %v", kws)
	}
	for _, kw := range kws {
		if kw == "sissejuhatus" || kw == "ja" {
			t.Errorf("stopword %q kept", kw)
		}
	}

	if kws := extractKeywords(rng, "Ja või i II", 2); kws != nil {
		t.Errorf("all-stopword title produced %v", kws)
	}
	if kws := extractKeywords(rng, "", 2); kws != nil {
		t.Errorf("empty title produced %v", kws)
	}
}

func TestConstraintText(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	if got := constraintText(rng, filter.Predicates{}); got != "." {
		t.Errorf("unconstrained text = %q", got)
	}

	got := constraintText(rng, filter.Predicates{Credits: "6", Semester: "autumn", Language: "et", Level: "bachelor"})
	for _, want := range []string{"6 EAP", "eesti keeles", "sügissemester", "bakalaureusele"} {
		if !strings.Contains(got, want) {
			t.Errorf("constraint text %q missing %q", got, want)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	cases := []Case{
		{
			ID:       "R01",
			Query:    "Soovita 3 kursust teemal 'masinõpe'.",
			Filters:  filter.Predicates{Credits: "6", Language: "en"},
			Expected: []string{"LTAT.02", "LTAT.05"},
			Note:     caseNote,
		},
		{
			ID:      "R02",
			Query:   "Soovita 2 kursust.",
			Filters: filter.Predicates{},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, cases); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !reflect.DeepEqual(got, cases) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cases)
	}
}

// onehotEmbedder maps every text deterministically onto a small set of axes
// so retrieval ranking is predictable.
type onehotEmbedder struct{ dims int }

func (e *onehotEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dims)
		var h uint32
		for _, r := range text {
			h = h*31 + uint32(r)
		}
		vec[int(h)%e.dims] = 1
		out[i] = vec
	}
	return out, nil
}

func (e *onehotEmbedder) Dimensions() int { return e.dims }
func (e *onehotEmbedder) Name() string    { return "onehot" }

func TestFillExpected(t *testing.T) {
	meta := loadTestMetadata(t)
	dir := t.TempDir()

	docs := "course_uuid,code,document_text\n" +
		"A,LTAT.01,sissejuhatus programmeerimisse\n" +
		"B,LTAT.02,masinõppe meetodid\n" +
		"C,FLKU.03,eesti kirjanduse ajalugu\n" +
		"D,MTMS.04,statistika alused\n"
	docsPath := filepath.Join(dir, "docs.csv")
	if err := os.WriteFile(docsPath, []byte(docs), 0644); err != nil {
		t.Fatalf("writing documents: %v", err)
	}
	corpus, err := catalog.LoadDocuments(docsPath)
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}

	emb := &onehotEmbedder{dims: 64}
	cache, err := embcache.Ensure(context.Background(), filepath.Join(dir, "cache"), corpus, emb, nil)
	if err != nil {
		t.Fatalf("Ensure cache: %v", err)
	}
	defer cache.Close()
	r := retriever.New(corpus, cache, emb, 0)

	cases := []Case{
		{ID: "R01", Query: "soovita midagi", Filters: filter.Predicates{Language: "et"}},
		{ID: "R02", Query: "soovita midagi", Filters: filter.Predicates{Credits: "99"}},
	}
	if err := FillExpected(context.Background(), meta, r, cases, 5); err != nil {
		t.Fatalf("FillExpected: %v", err)
	}

	// Language et matches A, C and D; all three codes must come back.
	if len(cases[0].Expected) != 3 {
		t.Errorf("case R01 expected = %v", cases[0].Expected)
	}
	for _, code := range cases[0].Expected {
		if code != "LTAT.01" && code != "FLKU.03" && code != "MTMS.04" {
			t.Errorf("unexpected code %q", code)
		}
	}

	// No course has 99 credits.
	if cases[1].Expected != nil {
		t.Errorf("case R02 expected = %v, want none", cases[1].Expected)
	}
}
