package embeddings

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	Normalize(vec)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", norm)
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("unexpected normalized vector: %v", vec)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	vec := []float32{0, 0, 0}
	Normalize(vec)
	for _, v := range vec {
		if v != 0 {
			t.Errorf("zero vector must stay zero, got %v", vec)
		}
	}
}

func TestModelDimensions(t *testing.T) {
	if d := ModelTextEmbedding3Small.dimensions(); d != 1536 {
		t.Errorf("small model dimensions: got %d", d)
	}
	if d := ModelTextEmbedding3Large.dimensions(); d != 3072 {
		t.Errorf("large model dimensions: got %d", d)
	}
	if d := OpenAIModel("unknown").dimensions(); d != 1536 {
		t.Errorf("unknown model should default to 1536, got %d", d)
	}
}

func TestNewOpenAIEmbedderWithBaseURL(t *testing.T) {
	e := NewOpenAIEmbedderWithBaseURL("key", "https://gateway.example.com/v1", ModelTextEmbedding3Large)
	if e.Name() != "text-embedding-3-large" {
		t.Errorf("Name() = %q", e.Name())
	}
	if e.Dimensions() != 3072 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
}
