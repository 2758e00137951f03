package dress

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

// solidPNG renders a single-color test image.
func solidPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// stripedPNG renders alternating vertical bars, giving the image hard edges.
func stripedPNG(t *testing.T, w, h, barWidth int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/barWidth)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestExtractFeaturesSolidColor(t *testing.T) {
	data := solidPNG(t, color.RGBA{R: 200, G: 30, B: 30, A: 255}, 64, 64)

	features, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("ExtractFeatures: %v", err)
	}

	if got, want := len(features.ColorHistogram), hueBins+satBins+valBins; got != want {
		t.Errorf("histogram length = %d; want %d", got, want)
	}
	if features.EdgeDensity != 0 {
		t.Errorf("EdgeDensity = %v; want 0 for a flat image", features.EdgeDensity)
	}
	if len(features.Dominant) != dominantColors {
		t.Fatalf("dominant color count = %d; want %d", len(features.Dominant), dominantColors)
	}
	for i, c := range features.Dominant {
		if math.Abs(c[0]-200) > 2 || math.Abs(c[1]-30) > 2 || math.Abs(c[2]-30) > 2 {
			t.Errorf("dominant[%d] = %v; want near [200 30 30]", i, c)
		}
	}
}

func TestExtractFeaturesHistogramIsNormalized(t *testing.T) {
	data := stripedPNG(t, 64, 64, 8)

	features, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("ExtractFeatures: %v", err)
	}

	// Each of the three concatenated sub-histograms has unit length.
	segments := [][2]int{{0, hueBins}, {hueBins, hueBins + satBins}, {hueBins + satBins, hueBins + satBins + valBins}}
	for i, seg := range segments {
		var sum float64
		for _, v := range features.ColorHistogram[seg[0]:seg[1]] {
			sum += v * v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("segment %d squared sum = %v; want 1", i, sum)
		}
	}
}

func TestExtractFeaturesEdges(t *testing.T) {
	striped := stripedPNG(t, 224, 224, 16)
	flat := solidPNG(t, color.Gray{Y: 128}, 224, 224)

	stripedFeatures, err := ExtractFeatures(striped)
	if err != nil {
		t.Fatalf("ExtractFeatures(striped): %v", err)
	}
	flatFeatures, err := ExtractFeatures(flat)
	if err != nil {
		t.Fatalf("ExtractFeatures(flat): %v", err)
	}

	if stripedFeatures.EdgeDensity <= flatFeatures.EdgeDensity {
		t.Errorf("striped density %v should exceed flat density %v",
			stripedFeatures.EdgeDensity, flatFeatures.EdgeDensity)
	}
}

func TestExtractFeaturesDeterministic(t *testing.T) {
	data := stripedPNG(t, 64, 64, 4)

	first, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("ExtractFeatures: %v", err)
	}
	second, err := ExtractFeatures(data)
	if err != nil {
		t.Fatalf("ExtractFeatures: %v", err)
	}

	if first.EdgeDensity != second.EdgeDensity {
		t.Errorf("edge density differs across runs: %v vs %v", first.EdgeDensity, second.EdgeDensity)
	}
	for i := range first.Dominant {
		if first.Dominant[i] != second.Dominant[i] {
			t.Errorf("dominant[%d] differs across runs: %v vs %v", i, first.Dominant[i], second.Dominant[i])
		}
	}
}

func TestExtractFeaturesInvalidImage(t *testing.T) {
	_, err := ExtractFeatures([]byte("definitely not an image"))

	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("error = %v; want *ExtractionError", err)
	}
	if extractErr.Stage != "decode" {
		t.Errorf("Stage = %q; want decode", extractErr.Stage)
	}
}
