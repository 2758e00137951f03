package face

import "log"

// Candidate is one enrolled identity offered to the matcher. ID is opaque to
// this package; candidates must be supplied in enrollment order so that ties
// resolve to the first-seen identity.
type Candidate struct {
	ID        int64
	Embedding Embedding
}

// Match is the best candidate found under the threshold.
type Match struct {
	ID         int64
	Distance   float64
	Confidence float64 // (1 - distance) * 100, as a percentage
}

// Matcher searches enrolled identities for the closest embedding. Implemented
// here as a full linear scan; kept behind an interface so an indexed
// nearest-neighbor structure can substitute without changing the pipeline.
type Matcher interface {
	BestMatch(query Embedding, candidates []Candidate) (Match, bool)
}

// LinearMatcher scans every candidate and keeps the minimum cosine distance
// under Threshold. O(N) per request; acceptable at institute scale.
type LinearMatcher struct {
	Threshold float64
}

// NewLinearMatcher creates a matcher with the given distance threshold.
func NewLinearMatcher(threshold float64) *LinearMatcher {
	return &LinearMatcher{Threshold: threshold}
}

// BestMatch returns the candidate with the minimum distance among those under
// the threshold. Candidates whose embeddings cannot be compared (length
// mismatch, zero magnitude) are skipped rather than failing the whole scan.
func (m *LinearMatcher) BestMatch(query Embedding, candidates []Candidate) (Match, bool) {
	best := Match{Distance: m.Threshold}
	found := false
	for _, c := range candidates {
		dist, err := CosineDistance(c.Embedding, query)
		if err != nil {
			log.Printf("face: skipping candidate %d: %v", c.ID, err)
			continue
		}
		// strict < keeps the first-seen candidate on exact ties
		if dist < m.Threshold && (!found || dist < best.Distance) {
			best = Match{ID: c.ID, Distance: dist, Confidence: (1 - dist) * 100}
			found = true
		}
	}
	return best, found
}
