// Package embcache persists document embeddings as a flat half-precision
// matrix on disk, invalidated by a corpus signature and read back through a
// read-only memory mapping.
//
// On-disk layout inside the cache directory:
//
//	vectors_f16.bin  row-major float16, shape (documents x dimensions)
//	ids.json         document identifiers in row order
//	signature.json   corpus signature the vectors were built from
package embcache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/x448/float16"
	"golang.org/x/exp/mmap"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embeddings"
	"github.com/campusrag/advisor/internal/progress"
)

const (
	vectorsFile   = "vectors_f16.bin"
	idsFile       = "ids.json"
	signatureFile = "signature.json"
	lockFile      = ".build.lock"
)

// Cache is a read-only view over the persisted embedding matrix. Rows are
// positionally aligned 1:1 with the identifier list.
type Cache struct {
	dir     string
	ids     []string
	idToIdx map[string]int
	dim     int
	rdr     *mmap.ReaderAt
}

// Ensure returns a cache for the given corpus, building it first if the
// persisted signature does not match. Concurrent first-time builds are
// serialized with a file lock: one process builds, the rest block and then
// open the result.
func Ensure(ctx context.Context, dir string, corpus *catalog.Corpus, embedder embeddings.Embedder, reporter progress.Reporter) (*Cache, error) {
	sig, err := FileSignature(corpus.Path, embedder.Name(), corpus.TextColumn)
	if err != nil {
		return nil, err
	}

	if valid(dir, sig) {
		return Open(dir)
	}

	if err := Build(ctx, dir, corpus, embedder, reporter); err != nil {
		return nil, err
	}
	return Open(dir)
}

// Build encodes every corpus document and atomically replaces the persisted
// cache. The signature is re-checked under the lock so a build finished by
// another process is not repeated.
func Build(ctx context.Context, dir string, corpus *catalog.Corpus, embedder embeddings.Embedder, reporter progress.Reporter) error {
	return buildLocked(ctx, dir, corpus, embedder, reporter, false)
}

// Rebuild unconditionally re-encodes the corpus, replacing the persisted
// cache even when its signature still matches.
func Rebuild(ctx context.Context, dir string, corpus *catalog.Corpus, embedder embeddings.Embedder, reporter progress.Reporter) error {
	return buildLocked(ctx, dir, corpus, embedder, reporter, true)
}

func buildLocked(ctx context.Context, dir string, corpus *catalog.Corpus, embedder embeddings.Embedder, reporter progress.Reporter, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	sig, err := FileSignature(corpus.Path, embedder.Name(), corpus.TextColumn)
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring cache build lock: %w", err)
	}
	defer lock.Unlock()

	// Another process may have completed the build while we waited.
	if !force && valid(dir, sig) {
		return nil
	}

	return build(ctx, dir, corpus, embedder, sig, reporter)
}

// Open maps an existing cache read-only. The vector dimension is derived
// from the file size and the identifier count (2 bytes per float16 value).
func Open(dir string) (*Cache, error) {
	data, err := os.ReadFile(filepath.Join(dir, idsFile))
	if err != nil {
		return nil, fmt.Errorf("reading cache ids: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing cache ids: %w", err)
	}

	rdr, err := mmap.Open(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, fmt.Errorf("mapping cache vectors: %w", err)
	}

	dim := 0
	if len(ids) > 0 {
		dim = rdr.Len() / (2 * len(ids))
	}
	if dim > 0 && rdr.Len() != 2*dim*len(ids) {
		rdr.Close()
		return nil, fmt.Errorf("cache vectors file size %d does not align with %d ids", rdr.Len(), len(ids))
	}

	idToIdx := make(map[string]int, len(ids))
	for i, id := range ids {
		idToIdx[id] = i
	}

	return &Cache{
		dir:     dir,
		ids:     ids,
		idToIdx: idToIdx,
		dim:     dim,
		rdr:     rdr,
	}, nil
}

// Close releases the underlying mapping.
func (c *Cache) Close() error {
	if c.rdr == nil {
		return nil
	}
	err := c.rdr.Close()
	c.rdr = nil
	return err
}

// Len returns the number of cached document vectors.
func (c *Cache) Len() int { return len(c.ids) }

// Dim returns the embedding dimension.
func (c *Cache) Dim() int { return c.dim }

// IDs returns document identifiers in row order.
func (c *Cache) IDs() []string { return c.ids }

// IndexOf returns the row index for a document identifier.
func (c *Cache) IndexOf(id string) (int, bool) {
	i, ok := c.idToIdx[id]
	return i, ok
}

// Row decodes the vector at the given row index into float32. The returned
// slice is freshly allocated per call.
func (c *Cache) Row(i int) ([]float32, error) {
	vec := make([]float32, c.dim)
	return vec, c.RowInto(i, vec)
}

// RowInto decodes the vector at the given row index into dst, which must
// have length Dim. It allows callers scoring many rows to reuse one buffer.
func (c *Cache) RowInto(i int, dst []float32) error {
	if i < 0 || i >= len(c.ids) {
		return fmt.Errorf("row %d out of range (have %d)", i, len(c.ids))
	}
	if len(dst) != c.dim {
		return fmt.Errorf("destination length %d, want %d", len(dst), c.dim)
	}

	buf := make([]byte, 2*c.dim)
	if _, err := c.rdr.ReadAt(buf, int64(i)*int64(2*c.dim)); err != nil {
		return fmt.Errorf("reading cache row %d: %w", i, err)
	}
	for j := 0; j < c.dim; j++ {
		bits := binary.LittleEndian.Uint16(buf[2*j:])
		dst[j] = float16.Frombits(bits).Float32()
	}
	return nil
}
