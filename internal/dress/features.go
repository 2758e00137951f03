package dress

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/rand"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	frameSize      = 224  // working resolution before region crop
	upperBodyRatio = 0.6  // garment region: upper 60% of the frame
	hueBins        = 180  // hue is halved into [0,180) like the 8-bit HSV convention
	satBins        = 256
	valBins        = 256
	dominantColors = 3
	kmeansIters    = 10
	edgeThreshold  = 100.0 // sobel magnitude above this counts as an edge pixel
)

// FeatureBundle holds the clothing features extracted from the garment region
// of a photo.
type FeatureBundle struct {
	// ColorHistogram is the concatenation of L2-normalized hue, saturation
	// and value histograms (180+256+256 entries).
	ColorHistogram []float64 `json:"color_histogram"`
	// EdgeDensity is the fraction of region pixels classified as edges.
	EdgeDensity float64 `json:"edge_density"`
	// Dominant are the k=3 cluster centers of the region's RGB pixels.
	Dominant [][3]float64 `json:"dominant_colors"`
}

// ExtractionError means clothing features could not be computed from an image.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("clothing feature extraction failed (%s): %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExtractFeatures decodes an image, crops the garment region and computes the
// color histograms, edge density and dominant colors described above.
func ExtractFeatures(imageData []byte) (*FeatureBundle, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, &ExtractionError{Stage: "decode", Err: err}
	}

	region := garmentRegion(img)

	hist := colorHistogram(region)
	edges := edgeDensity(region)
	dominant := dominantColorsOf(region)

	return &FeatureBundle{
		ColorHistogram: hist,
		EdgeDensity:    edges,
		Dominant:       dominant,
	}, nil
}

// garmentRegion scales the image to the working resolution and returns the
// upper portion of the frame as an RGBA image.
func garmentRegion(img image.Image) *image.RGBA {
	scaled := image.NewRGBA(image.Rect(0, 0, frameSize, frameSize))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)

	ratio := float64(upperBodyRatio)
	regionHeight := int(float64(frameSize) * ratio)
	return scaled.SubImage(image.Rect(0, 0, frameSize, regionHeight)).(*image.RGBA)
}

// colorHistogram computes independent hue/saturation/value histograms over the
// region, L2-normalizes each and concatenates them into one vector.
func colorHistogram(region *image.RGBA) []float64 {
	histH := make([]float64, hueBins)
	histS := make([]float64, satBins)
	histV := make([]float64, valBins)

	bounds := region.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := region.At(x, y).RGBA()
			h, s, v := rgbToHSV(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			histH[h]++
			histS[s]++
			histV[v]++
		}
	}

	normalizeL2(histH)
	normalizeL2(histS)
	normalizeL2(histV)

	out := make([]float64, 0, hueBins+satBins+valBins)
	out = append(out, histH...)
	out = append(out, histS...)
	out = append(out, histV...)
	return out
}

// rgbToHSV converts an 8-bit RGB triple to the 8-bit HSV convention:
// hue in [0,180), saturation and value in [0,256).
func rgbToHSV(r, g, b uint8) (int, int, int) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	v := max
	var s float64
	if max > 0 {
		s = 255 * delta / max
	}

	var h float64
	if delta > 0 {
		switch max {
		case rf:
			h = 60 * (gf - bf) / delta
		case gf:
			h = 120 + 60*(bf-rf)/delta
		default:
			h = 240 + 60*(rf-gf)/delta
		}
		if h < 0 {
			h += 360
		}
	}

	hi := int(h / 2)
	if hi >= hueBins {
		hi = hueBins - 1
	}
	return hi, clampIndex(int(s), satBins), clampIndex(int(v), valBins)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// normalizeL2 scales the histogram to unit Euclidean length in place.
func normalizeL2(hist []float64) {
	var sum float64
	for _, v := range hist {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range hist {
		hist[i] /= norm
	}
}

// edgeDensity runs a Sobel operator over the grayscale region and returns the
// fraction of pixels whose gradient magnitude exceeds the edge threshold.
func edgeDensity(region *image.RGBA) float64 {
	bounds := region.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	gray := make([][]float64, height)
	for y := 0; y < height; y++ {
		gray[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := region.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	edgePixels := 0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := -gray[y-1][x-1] + gray[y-1][x+1] +
				-2*gray[y][x-1] + 2*gray[y][x+1] +
				-gray[y+1][x-1] + gray[y+1][x+1]
			gy := -gray[y-1][x-1] - 2*gray[y-1][x] - gray[y-1][x+1] +
				gray[y+1][x-1] + 2*gray[y+1][x] + gray[y+1][x+1]
			if math.Hypot(gx, gy) > edgeThreshold {
				edgePixels++
			}
		}
	}

	return float64(edgePixels) / float64(width*height)
}

// dominantColorsOf clusters the region's RGB pixels with k-means and returns
// the k cluster centers. Seeded deterministically so repeated extraction of
// the same image yields the same features.
func dominantColorsOf(region *image.RGBA) [][3]float64 {
	bounds := region.Bounds()
	var pixels [][3]float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := region.At(x, y).RGBA()
			pixels = append(pixels, [3]float64{float64(r >> 8), float64(g >> 8), float64(b >> 8)})
		}
	}
	return kmeans(pixels, dominantColors, kmeansIters)
}

// kmeans clusters points into k groups and returns the centers.
func kmeans(points [][3]float64, k, iters int) [][3]float64 {
	centers := make([][3]float64, k)
	if len(points) == 0 {
		return centers
	}

	rng := rand.New(rand.NewSource(1))
	for i := range centers {
		centers[i] = points[rng.Intn(len(points))]
	}

	assignments := make([]int, len(points))
	for iter := 0; iter < iters; iter++ {
		changed := false
		for i, p := range points {
			best := 0
			bestDist := math.MaxFloat64
			for c, center := range centers {
				d := sqDist(p, center)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][3]float64, k)
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			for j := 0; j < 3; j++ {
				sums[c][j] += p[j]
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				// re-seed empty clusters from a random point
				centers[c] = points[rng.Intn(len(points))]
				continue
			}
			for j := 0; j < 3; j++ {
				centers[c][j] = sums[c][j] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}
	return centers
}

func sqDist(a, b [3]float64) float64 {
	d0 := a[0] - b[0]
	d1 := a[1] - b[1]
	d2 := a[2] - b[2]
	return d0*d0 + d1*d1 + d2*d2
}
