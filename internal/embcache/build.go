package embcache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/x448/float16"

	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/embeddings"
	"github.com/campusrag/advisor/internal/progress"
)

// buildBatchSize bounds peak memory during encoding: only one batch of
// float32 encoder output is alive at a time.
const buildBatchSize = 128

// build encodes the corpus batch by batch into staged temp files and renames
// them into place. The signature file is written last so a crashed build is
// detected as stale and redone.
func build(ctx context.Context, dir string, corpus *catalog.Corpus, embedder embeddings.Embedder, sig Signature, reporter progress.Reporter) error {
	texts := corpus.Texts()
	ids := corpus.IDs()

	tmpVectors, err := os.CreateTemp(dir, vectorsFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("staging vectors file: %w", err)
	}
	tmpPath := tmpVectors.Name()
	defer func() {
		tmpVectors.Close()
		os.Remove(tmpPath)
	}()

	if reporter != nil {
		reporter.Start(len(texts))
		defer reporter.Finish()
	}

	dim := 0
	for start := 0; start < len(texts); start += buildBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + buildBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embedding documents %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return fmt.Errorf("embedder returned %d vectors, expected %d", len(vecs), end-start)
		}

		for _, vec := range vecs {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim {
				return fmt.Errorf("embedding dimension changed from %d to %d", dim, len(vec))
			}
			if err := writeRow(tmpVectors, vec); err != nil {
				return fmt.Errorf("writing vectors: %w", err)
			}
		}

		if reporter != nil {
			reporter.Update(end, fmt.Sprintf("Embedding documents %d/%d", end, len(texts)))
		}
	}

	if err := tmpVectors.Sync(); err != nil {
		return fmt.Errorf("syncing vectors: %w", err)
	}
	if err := tmpVectors.Close(); err != nil {
		return fmt.Errorf("closing vectors: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, vectorsFile)); err != nil {
		return fmt.Errorf("publishing vectors: %w", err)
	}

	if err := writeJSONAtomic(filepath.Join(dir, idsFile), ids); err != nil {
		return fmt.Errorf("writing ids: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, signatureFile), sig); err != nil {
		return fmt.Errorf("writing signature: %w", err)
	}
	return nil
}

// writeRow appends one vector as little-endian float16 values.
func writeRow(f *os.File, vec []float32) error {
	buf := make([]byte, 2*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(v).Bits())
	}
	_, err := f.Write(buf)
	return err
}

// writeJSONAtomic stages the JSON document to a temp file in the same
// directory and renames it into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
