package face

import "fmt"

// ExtractionError means the submitted image had no detectable face (or more
// than one). A data-quality problem, distinct from a "no match" business
// outcome.
type ExtractionError struct {
	Reason string
	Faces  int
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("face extraction failed: %s (faces detected: %d)", e.Reason, e.Faces)
}

// TransientError means the embedding service was unreachable, timed out, or
// answered with garbage. Retryable by the caller; must never be recorded as a
// definitive non-match.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("face service %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
