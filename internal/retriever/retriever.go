// Package retriever scores the allow-set of documents against an embedded
// query and returns the top-k by cosine similarity.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embcache"
	"github.com/campusrag/advisor/internal/embeddings"
)

// DefaultTopK is the number of documents returned when the caller does not
// specify k.
const DefaultTopK = 5

// defaultScoreChunk bounds how many cache rows are decoded per scoring pass.
const defaultScoreChunk = 4096

// ErrNoResults is returned when the allow-set maps to zero cache rows.
// Callers must treat this as a terminal outcome, never as permission to
// score the full corpus.
var ErrNoResults = errors.New("no documents to score after applying filters")

// Match pairs a retrieved document with its similarity score.
type Match struct {
	Doc   catalog.Document
	Row   int
	Score float32
}

// Retriever restricts the corpus to an allow-set and ranks it against a
// query embedding.
type Retriever struct {
	corpus   *catalog.Corpus
	cache    *embcache.Cache
	embedder embeddings.Embedder
	chunk    int
}

// New creates a Retriever. chunk <= 0 selects the default scoring chunk.
func New(corpus *catalog.Corpus, cache *embcache.Cache, embedder embeddings.Embedder, chunk int) *Retriever {
	if chunk <= 0 {
		chunk = defaultScoreChunk
	}
	return &Retriever{
		corpus:   corpus,
		cache:    cache,
		embedder: embedder,
		chunk:    chunk,
	}
}

// Retrieve embeds the query and returns up to k documents from the allow-set
// ranked by descending dot product, ties broken by corpus order. Identifiers
// absent from the cache are dropped; if all are dropped the result is
// ErrNoResults.
func (r *Retriever) Retrieve(ctx context.Context, query string, allowIDs []string, k int) ([]Match, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	rows, dropped := r.mapToRows(allowIDs)
	if dropped > 0 {
		log.Printf("retriever: dropped %d filtered ids absent from the embedding cache", dropped)
	}
	if len(rows) == 0 {
		return nil, ErrNoResults
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d query vectors, expected 1", len(vecs))
	}
	q := vecs[0]
	if len(q) != r.cache.Dim() {
		return nil, fmt.Errorf("query dimension %d does not match cache dimension %d", len(q), r.cache.Dim())
	}

	scores, err := r.score(rows, q)
	if err != nil {
		return nil, err
	}

	top := selectTopK(scores, k)
	matches := make([]Match, 0, len(top))
	for _, s := range top {
		doc := r.corpus.Docs[s.row]
		matches = append(matches, Match{Doc: doc, Row: s.row, Score: s.score})
	}
	return matches, nil
}

// CacheHits reports how many of the given identifiers are present in the
// embedding cache, i.e. how many documents a Retrieve call would score.
func (r *Retriever) CacheHits(allowIDs []string) int {
	rows, _ := r.mapToRows(allowIDs)
	return len(rows)
}

// mapToRows resolves allow-set identifiers to cache rows in ascending corpus
// order, counting identifiers the cache does not know.
func (r *Retriever) mapToRows(allowIDs []string) ([]int, int) {
	rows := make([]int, 0, len(allowIDs))
	dropped := 0
	for _, id := range allowIDs {
		if row, ok := r.cache.IndexOf(id); ok {
			rows = append(rows, row)
		} else {
			dropped++
		}
	}
	sort.Ints(rows)
	return rows, dropped
}

// score computes dot products chunk by chunk, reusing one row buffer so the
// allow-set size does not drive peak memory.
func (r *Retriever) score(rows []int, q []float32) ([]scored, error) {
	out := make([]scored, 0, len(rows))
	buf := make([]float32, r.cache.Dim())

	for start := 0; start < len(rows); start += r.chunk {
		end := start + r.chunk
		if end > len(rows) {
			end = len(rows)
		}
		for _, row := range rows[start:end] {
			if err := r.cache.RowInto(row, buf); err != nil {
				return nil, err
			}
			out = append(out, scored{row: row, score: dot(buf, q)})
		}
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
