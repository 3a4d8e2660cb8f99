package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embcache"
)

// fixedEmbedder maps each text to a preset vector, falling back to a
// one-hot-ish deterministic vector. Vectors are already normalized by the
// test author.
type fixedEmbedder struct {
	dims    int
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no fixture vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fixedEmbedder) Dimensions() int { return f.dims }
func (f *fixedEmbedder) Name() string    { return "fixed" }

func unit(dims int, hot ...int) []float32 {
	vec := make([]float32, dims)
	norm := float32(math.Sqrt(float64(len(hot))))
	for _, h := range hot {
		vec[h] = 1 / norm
	}
	return vec
}

func buildFixture(t *testing.T, texts []string, emb *fixedEmbedder) (*catalog.Corpus, *embcache.Cache) {
	t.Helper()
	dir := t.TempDir()

	content := "course_uuid,code,document_text\n"
	for i, text := range texts {
		content += fmt.Sprintf("%c,C%d,%s\n", 'A'+i, i, text)
	}
	path := filepath.Join(dir, "docs.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing corpus: %v", err)
	}

	corpus, err := catalog.LoadDocuments(path)
	if err != nil {
		t.Fatalf("loading corpus: %v", err)
	}
	cache, err := embcache.Ensure(context.Background(), filepath.Join(dir, "cache"), corpus, emb, nil)
	if err != nil {
		t.Fatalf("building cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return corpus, cache
}

func matchIDs(matches []Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Doc.ID
	}
	return ids
}

func TestRetrieveRanksByScore(t *testing.T) {
	emb := &fixedEmbedder{dims: 8, vectors: map[string][]float32{
		"docA":  unit(8, 0),
		"docB":  unit(8, 1),
		"docC":  unit(8, 0, 1),
		"query": unit(8, 1),
	}}
	corpus, cache := buildFixture(t, []string{"docA", "docB", "docC"}, emb)
	r := New(corpus, cache, emb, 0)

	// Query vector is identical to document B's embedding.
	matches, err := r.Retrieve(context.Background(), "query", []string{"A", "B"}, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if got := matchIDs(matches); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Fatalf("ranking: got %v, want [B A]", got)
	}
	if math.Abs(float64(matches[0].Score)-1.0) > 2e-3 {
		t.Errorf("identical-vector score: got %f, want ~1.0", matches[0].Score)
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	emb := &fixedEmbedder{dims: 8, vectors: map[string][]float32{
		"docA":  unit(8, 0, 2),
		"docB":  unit(8, 1, 2),
		"docC":  unit(8, 2),
		"query": unit(8, 2),
	}}
	corpus, cache := buildFixture(t, []string{"docA", "docB", "docC"}, emb)
	r := New(corpus, cache, emb, 0)

	var first []string
	for i := 0; i < 5; i++ {
		matches, err := r.Retrieve(context.Background(), "query", []string{"A", "B", "C"}, 3)
		if err != nil {
			t.Fatalf("Retrieve #%d: %v", i, err)
		}
		got := matchIDs(matches)
		if first == nil {
			first = got
			continue
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d returned %v, first run returned %v", i, got, first)
		}
	}
}

func TestRetrieveTiesBrokenByCorpusOrder(t *testing.T) {
	// A and C embed identically, so they tie on every query.
	same := unit(8, 3)
	emb := &fixedEmbedder{dims: 8, vectors: map[string][]float32{
		"docA":  same,
		"docB":  unit(8, 4),
		"docC":  same,
		"query": unit(8, 3),
	}}
	corpus, cache := buildFixture(t, []string{"docA", "docB", "docC"}, emb)
	r := New(corpus, cache, emb, 0)

	matches, err := r.Retrieve(context.Background(), "query", []string{"C", "A", "B"}, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got := matchIDs(matches); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("tie order: got %v, want [A C]", got)
	}
}

func TestRetrieveEmptyAllowSet(t *testing.T) {
	emb := &fixedEmbedder{dims: 8, vectors: map[string][]float32{
		"docA":  unit(8, 0),
		"query": unit(8, 0),
	}}
	corpus, cache := buildFixture(t, []string{"docA"}, emb)
	r := New(corpus, cache, emb, 0)

	_, err := r.Retrieve(context.Background(), "query", nil, 5)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("empty allow-set: got %v, want ErrNoResults", err)
	}
}

func TestRetrieveUnknownIDsDropped(t *testing.T) {
	emb := &fixedEmbedder{dims: 8, vectors: map[string][]float32{
		"docA":  unit(8, 0),
		"query": unit(8, 0),
	}}
	corpus, cache := buildFixture(t, []string{"docA"}, emb)
	r := New(corpus, cache, emb, 0)

	matches, err := r.Retrieve(context.Background(), "query", []string{"A", "ghost"}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got := matchIDs(matches); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("got %v, want [A]", got)
	}

	// All unknown: degraded to the no-results outcome.
	_, err = r.Retrieve(context.Background(), "query", []string{"ghost", "phantom"}, 5)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("all-unknown allow-set: got %v, want ErrNoResults", err)
	}
}

func TestRetrieveFewerThanK(t *testing.T) {
	emb := &fixedEmbedder{dims: 8, vectors: map[string][]float32{
		"docA":  unit(8, 0),
		"docB":  unit(8, 1),
		"query": unit(8, 0),
	}}
	corpus, cache := buildFixture(t, []string{"docA", "docB"}, emb)
	r := New(corpus, cache, emb, 0)

	matches, err := r.Retrieve(context.Background(), "query", []string{"A", "B"}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected all 2 documents for k=10, got %d", len(matches))
	}
}

func TestRetrieveSmallChunk(t *testing.T) {
	// Chunked scoring must produce identical results to one pass.
	emb := &fixedEmbedder{dims: 8, vectors: map[string][]float32{
		"docA":  unit(8, 0, 1),
		"docB":  unit(8, 1),
		"docC":  unit(8, 2),
		"docD":  unit(8, 1, 2),
		"query": unit(8, 1),
	}}
	corpus, cache := buildFixture(t, []string{"docA", "docB", "docC", "docD"}, emb)

	all := []string{"A", "B", "C", "D"}
	big := New(corpus, cache, emb, 1024)
	small := New(corpus, cache, emb, 1)

	ctx := context.Background()
	wantMatches, err := big.Retrieve(ctx, "query", all, 4)
	if err != nil {
		t.Fatalf("Retrieve (big chunk): %v", err)
	}
	gotMatches, err := small.Retrieve(ctx, "query", all, 4)
	if err != nil {
		t.Fatalf("Retrieve (chunk=1): %v", err)
	}
	if !reflect.DeepEqual(matchIDs(gotMatches), matchIDs(wantMatches)) {
		t.Errorf("chunked ranking differs: %v vs %v", matchIDs(gotMatches), matchIDs(wantMatches))
	}
}

func TestSelectTopK(t *testing.T) {
	candidates := []scored{
		{row: 0, score: 0.5},
		{row: 1, score: 0.9},
		{row: 2, score: 0.9},
		{row: 3, score: 0.1},
	}
	top := selectTopK(candidates, 3)
	wantRows := []int{1, 2, 0}
	for i, s := range top {
		if s.row != wantRows[i] {
			t.Errorf("position %d: got row %d, want %d", i, s.row, wantRows[i])
		}
	}

	if got := selectTopK(candidates, 0); got != nil {
		t.Errorf("k=0 should select nothing, got %v", got)
	}
	if got := selectTopK(nil, 5); len(got) != 0 {
		t.Errorf("empty candidates should select nothing, got %v", got)
	}
}
