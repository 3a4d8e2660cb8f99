package embcache

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/campusrag/advisor/internal/catalog"
)

// mockEmbedder returns deterministic embeddings based on text content.
// It produces a simple hash-based vector for reproducible tests. Safe for
// concurrent use.
type mockEmbedder struct {
	dims int
	name string

	mu    sync.Mutex
	calls int
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, name: "mock"}
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = m.deterministicVector(text)
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return m.name }

func (m *mockEmbedder) deterministicVector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, ch := range text {
		idx := (int(ch) + i) % m.dims
		vec[idx] += 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func testCorpus(t *testing.T, dir string, texts ...string) *catalog.Corpus {
	t.Helper()
	content := "course_uuid,code,document_text\n"
	for i, text := range texts {
		content += string(rune('a'+i)) + ",C" + string(rune('0'+i)) + ",\"" + text + "\"\n"
	}
	path := filepath.Join(dir, "docs.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing corpus: %v", err)
	}
	c, err := catalog.LoadDocuments(path)
	if err != nil {
		t.Fatalf("loading corpus: %v", err)
	}
	return c
}

func TestEnsureBuildsAndReloads(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	corpus := testCorpus(t, dir, "machine learning basics", "data security", "java programming")
	embedder := newMockEmbedder(32)

	cache, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	defer cache.Close()

	if cache.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", cache.Len())
	}
	if cache.Dim() != 32 {
		t.Fatalf("expected dim 32, got %d", cache.Dim())
	}

	// Round trip: persisted rows match a fresh encode within f16 precision.
	fresh, err := embedder.Embed(ctx, corpus.Texts())
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range corpus.Docs {
		row, err := cache.Row(i)
		if err != nil {
			t.Fatalf("Row(%d): %v", i, err)
		}
		for j := range row {
			if diff := math.Abs(float64(row[j] - fresh[i][j])); diff > 2e-3 {
				t.Errorf("row %d dim %d differs by %f", i, j, diff)
			}
		}
	}

	// Second Ensure with an unchanged corpus must not re-encode.
	callsBefore := embedder.callCount()
	cache2, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	defer cache2.Close()
	if embedder.callCount() != callsBefore {
		t.Errorf("unchanged corpus triggered re-encode (%d extra calls)", embedder.callCount()-callsBefore)
	}
}

func TestIndexOf(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	corpus := testCorpus(t, dir, "alpha", "beta")
	cache, err := Ensure(ctx, filepath.Join(dir, "cache"), corpus, newMockEmbedder(16), nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	defer cache.Close()

	if i, ok := cache.IndexOf("b"); !ok || i != 1 {
		t.Errorf("IndexOf(b) = %d, %v", i, ok)
	}
	if _, ok := cache.IndexOf("missing"); ok {
		t.Error("IndexOf(missing) should report absence")
	}
}

func TestSignatureInvalidation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	corpus := testCorpus(t, dir, "alpha", "beta")
	embedder := newMockEmbedder(16)

	cache, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	cache.Close()

	tests := []struct {
		name   string
		mutate func(*Signature)
	}{
		{"path", func(s *Signature) { s.Path = "elsewhere.csv" }},
		{"size", func(s *Signature) { s.Size++ }},
		{"mtime", func(s *Signature) { s.MtimeNS++ }},
		{"model", func(s *Signature) { s.Model = "other-model" }},
		{"text column", func(s *Signature) { s.TextColumn = "other_col" }},
	}

	base, err := FileSignature(corpus.Path, embedder.Name(), corpus.TextColumn)
	if err != nil {
		t.Fatalf("FileSignature: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := base
			tt.mutate(&sig)
			if valid(cacheDir, sig) {
				t.Errorf("cache must be stale when %s changes", tt.name)
			}
		})
	}

	if !valid(cacheDir, base) {
		t.Error("cache must be valid for the unchanged signature")
	}
}

func TestCorpusChangeForcesRebuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	corpus := testCorpus(t, dir, "alpha", "beta")
	embedder := newMockEmbedder(16)

	cache, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	cache.Close()

	// Rewrite the corpus file with different content and a bumped mtime.
	time.Sleep(10 * time.Millisecond)
	corpus2 := testCorpus(t, dir, "alpha", "beta", "gamma")

	callsBefore := embedder.callCount()
	cache2, err := Ensure(ctx, cacheDir, corpus2, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure after change: %v", err)
	}
	defer cache2.Close()

	if embedder.callCount() == callsBefore {
		t.Error("changed corpus did not trigger a rebuild")
	}
	if cache2.Len() != 3 {
		t.Errorf("rebuilt cache has %d rows, want 3", cache2.Len())
	}
}

func TestRowOutOfRange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	corpus := testCorpus(t, dir, "only one")
	cache, err := Ensure(ctx, filepath.Join(dir, "cache"), corpus, newMockEmbedder(8), nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	defer cache.Close()

	if _, err := cache.Row(5); err == nil {
		t.Error("expected error for out-of-range row")
	}
	if _, err := cache.Row(-1); err == nil {
		t.Error("expected error for negative row")
	}
}

func TestRebuildReencodesFreshCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	corpus := testCorpus(t, dir, "alpha", "beta")
	embedder := newMockEmbedder(16)

	cache, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	cache.Close()

	// Build honors a matching signature and stays a no-op.
	callsBefore := embedder.callCount()
	if err := Build(ctx, cacheDir, corpus, embedder, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if embedder.callCount() != callsBefore {
		t.Errorf("Build re-encoded an up-to-date cache (%d extra calls)", embedder.callCount()-callsBefore)
	}

	// Rebuild must re-encode even though nothing changed.
	if err := Rebuild(ctx, cacheDir, corpus, embedder, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if embedder.callCount() == callsBefore {
		t.Error("Rebuild did not re-encode an up-to-date cache")
	}

	cache2, err := Open(cacheDir)
	if err != nil {
		t.Fatalf("Open after Rebuild: %v", err)
	}
	defer cache2.Close()
	if cache2.Len() != 2 {
		t.Errorf("rebuilt cache has %d rows, want 2", cache2.Len())
	}
}

func TestConcurrentEnsureBuildsOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	corpus := testCorpus(t, dir, "alpha", "beta", "gamma")
	embedder := newMockEmbedder(16)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cache, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
			if err != nil {
				errs[i] = err
				return
			}
			if cache.Len() != 3 {
				errs[i] = fmt.Errorf("cache has %d rows, want 3", cache.Len())
			}
			cache.Close()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}

	// The build lock serializes first-time construction: the losers of the
	// race must find a valid signature and open without encoding.
	if got := embedder.callCount(); got != 1 {
		t.Errorf("concurrent Ensure encoded %d times, want 1", got)
	}
}

func TestMissingSignatureForcesRebuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	corpus := testCorpus(t, dir, "alpha", "beta")
	embedder := newMockEmbedder(16)

	cache, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	cache.Close()

	sig, err := FileSignature(corpus.Path, embedder.Name(), corpus.TextColumn)
	if err != nil {
		t.Fatalf("FileSignature: %v", err)
	}

	// A crashed build leaves vectors without a signature, since the
	// signature is published last. That state must read as stale.
	sigPath := filepath.Join(cacheDir, signatureFile)
	if err := os.Remove(sigPath); err != nil {
		t.Fatalf("removing signature: %v", err)
	}
	if valid(cacheDir, sig) {
		t.Error("cache without a signature must be stale")
	}

	callsBefore := embedder.callCount()
	cache2, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure after signature loss: %v", err)
	}
	cache2.Close()
	if embedder.callCount() == callsBefore {
		t.Error("missing signature did not trigger a rebuild")
	}

	// A truncated or garbled signature must likewise read as stale.
	if err := os.WriteFile(sigPath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("corrupting signature: %v", err)
	}
	if valid(cacheDir, sig) {
		t.Error("cache with a corrupt signature must be stale")
	}

	callsBefore = embedder.callCount()
	cache3, err := Ensure(ctx, cacheDir, corpus, embedder, nil)
	if err != nil {
		t.Fatalf("Ensure after signature corruption: %v", err)
	}
	defer cache3.Close()
	if embedder.callCount() == callsBefore {
		t.Error("corrupt signature did not trigger a rebuild")
	}
}
