package dress

import "math"

// Comparison weights for the overall similarity score.
const (
	weightHistogram = 0.5
	weightDominant  = 0.4
	weightEdges     = 0.1
)

// Compare scores two feature bundles against each other and reports whether
// the overall similarity reaches the threshold.
func Compare(a, b *FeatureBundle, threshold float64) (bool, float64) {
	histSim := histogramSimilarity(a.ColorHistogram, b.ColorHistogram)
	domSim := dominantSimilarity(a.Dominant, b.Dominant)
	edgeSim := edgeSimilarity(a.EdgeDensity, b.EdgeDensity)

	overall := weightHistogram*histSim + weightDominant*domSim + weightEdges*edgeSim
	return overall >= threshold, overall
}

// histogramSimilarity is a correlation comparison of the two concatenated
// histograms, remapped from [-1,1] to [0,1].
func histogramSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}

	corr := cov / math.Sqrt(varA*varB)
	return (corr + 1) / 2
}

// dominantSimilarity: for each of a's dominant colors, the minimum Euclidean
// distance to any of b's colors, averaged, normalized by 255, inverted and
// clamped to [0,1].
func dominantSimilarity(a, b [][3]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var total float64
	for _, ca := range a {
		minDist := math.MaxFloat64
		for _, cb := range b {
			if d := math.Sqrt(sqDist(ca, cb)); d < minDist {
				minDist = d
			}
		}
		total += minDist
	}

	avg := total / float64(len(a)) / 255.0
	return 1 - math.Min(avg, 1.0)
}

// edgeSimilarity is 1 minus the absolute edge-density difference, clamped.
func edgeSimilarity(a, b float64) float64 {
	return 1 - math.Min(math.Abs(a-b), 1.0)
}
