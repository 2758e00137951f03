package face

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Embedding
		expected float64
		wantErr  bool
	}{
		{"identical", Embedding{1, 2, 3}, Embedding{1, 2, 3}, 0, false},
		{"scaled copy", Embedding{1, 2, 3}, Embedding{2, 4, 6}, 0, false},
		{"orthogonal", Embedding{1, 0}, Embedding{0, 1}, 1, false},
		{"opposite", Embedding{1, 0}, Embedding{-1, 0}, 2, false},
		{"length mismatch", Embedding{1, 2}, Embedding{1, 2, 3}, 0, true},
		{"empty", Embedding{}, Embedding{}, 0, true},
		{"zero magnitude", Embedding{0, 0}, Embedding{1, 1}, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CosineDistance(tc.a, tc.b)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Errorf("CosineDistance = %v; want %v", got, tc.expected)
			}
		})
	}
}

func TestCosineDistanceSymmetric(t *testing.T) {
	a := Embedding{0.1, -0.5, 0.8, 0.3}
	b := Embedding{0.4, 0.2, -0.1, 0.9}

	ab, err := CosineDistance(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := CosineDistance(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	original := Embedding{0.125, -0.25, 0.5, 1}

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeEmbedding(encoded)
	if err != nil {
		t.Fatalf("DecodeEmbedding: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("length = %d; want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("component %d = %v; want %v", i, decoded[i], original[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	if _, err := (Embedding{}).Encode(); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestDecodeEmbeddingInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "not-json"},
		{"empty array", "[]"},
		{"object", `{"a":1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeEmbedding(tc.input); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
