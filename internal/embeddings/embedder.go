package embeddings

import (
	"context"
	"math"
)

// Embedder defines the interface for generating text embeddings.
// Implementations must return L2-normalized vectors so that cosine
// similarity downstream reduces to a dot product.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Normalize scales the vector to unit length in place. Zero vectors are
// left untouched.
func Normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
