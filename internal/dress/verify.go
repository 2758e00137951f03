package dress

import (
	"encoding/base64"
	"fmt"
	"log"
)

// Reference is one institute-configured garment the submitted photo must
// resemble. Image payloads are stored base64-encoded.
type Reference struct {
	ID        int64
	DressType string
	ImageData string // base64
}

// ItemResult is the per-garment outcome inside a compliance report.
type ItemResult struct {
	DressType       string  `json:"dress_type"`
	Matched         bool    `json:"matched"`
	Confidence      string  `json:"confidence"`
	SimilarityScore float64 `json:"similarity_score"`
	Error           string  `json:"error,omitempty"`
}

// Report is the full garment-compliance verdict for one photo.
type Report struct {
	AllItemsMatched bool         `json:"all_items_matched"`
	Items           []ItemResult `json:"items"`
	TotalItems      int          `json:"total_items"`
	MatchedItems    int          `json:"matched_items"`
	Message         string       `json:"message,omitempty"`
}

// Verifier checks whole-person compliance against an institute's garment
// references. Threshold is injected at construction so tests can pin it.
type Verifier struct {
	Threshold float64
}

// NewVerifier creates a verifier with the given match threshold.
func NewVerifier(threshold float64) *Verifier {
	return &Verifier{Threshold: threshold}
}

// Verify compares the submitted photo's feature bundle against every
// reference. Compliance requires all references to match. With zero
// references configured, verification auto-passes with an empty item list.
//
// A non-nil error means the submitted photo itself could not be processed;
// the caller owns the fail-open/fail-closed policy for that case.
// Per-reference failures never return an error: the reference is skipped and
// the failure is recorded on its report item.
func (v *Verifier) Verify(photo []byte, refs []Reference) (*Report, error) {
	if len(refs) == 0 {
		return &Report{
			AllItemsMatched: true,
			Items:           []ItemResult{},
			Message:         "No dress code requirements",
		}, nil
	}

	photoFeatures, err := ExtractFeatures(photo)
	if err != nil {
		return nil, err
	}

	report := &Report{AllItemsMatched: true, TotalItems: len(refs), Items: make([]ItemResult, 0, len(refs))}
	for _, ref := range refs {
		item := ItemResult{DressType: ref.DressType}

		refFeatures, ferr := referenceFeatures(ref)
		if ferr != nil {
			log.Printf("dress: reference %q skipped: %v", ref.DressType, ferr)
			item.Error = ferr.Error()
			item.Matched = true // skipped references do not block compliance
			report.Items = append(report.Items, item)
			report.MatchedItems++
			continue
		}

		matched, similarity := Compare(photoFeatures, refFeatures, v.Threshold)
		item.Matched = matched
		item.SimilarityScore = similarity
		item.Confidence = fmt.Sprintf("%.1f%%", similarity*100)
		if matched {
			report.MatchedItems++
		} else {
			report.AllItemsMatched = false
		}
		report.Items = append(report.Items, item)
	}

	return report, nil
}

func referenceFeatures(ref Reference) (*FeatureBundle, error) {
	raw, err := base64.StdEncoding.DecodeString(ref.ImageData)
	if err != nil {
		return nil, fmt.Errorf("decode reference image: %w", err)
	}
	return ExtractFeatures(raw)
}
