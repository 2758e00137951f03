package face

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Embedding is a fixed-length feature vector produced once per enrollment
// photo. Stored as a JSON float array, opaque to the database.
type Embedding []float64

// Encode serializes the embedding for storage.
func (e Embedding) Encode() (string, error) {
	if len(e) == 0 {
		return "", errors.New("empty embedding")
	}
	b, err := json.Marshal([]float64(e))
	if err != nil {
		return "", fmt.Errorf("encode embedding: %w", err)
	}
	return string(b), nil
}

// DecodeEmbedding parses a stored embedding.
func DecodeEmbedding(s string) (Embedding, error) {
	var vals []float64
	if err := json.Unmarshal([]byte(s), &vals); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(vals) == 0 {
		return nil, errors.New("decoded embedding is empty")
	}
	return Embedding(vals), nil
}

// CosineDistance returns 1 - cosine similarity between two embeddings.
// Lower means more similar. Symmetric in its arguments.
func CosineDistance(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("empty embedding")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New("zero-magnitude embedding")
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}
