package attendance

import (
	"errors"
	"fmt"
)

// ErrInstituteNotFound means attendance cannot proceed without institute
// scoping. Terminal and user-facing.
var ErrInstituteNotFound = errors.New("institute not found")

// ErrNotRecognized means the biometric comparison found no candidate under
// the threshold. A normal business outcome, not a system fault.
var ErrNotRecognized = errors.New("face not recognized")

// PolicyBlockedError means the calendar resolver blocked the day. Returned
// before any extraction work is attempted.
type PolicyBlockedError struct {
	Reason   string
	IsCustom bool
}

func (e *PolicyBlockedError) Error() string {
	return fmt.Sprintf("attendance marking is disabled today: %s", e.Reason)
}

// DuplicateError means the identity already has a record for the day. Carries
// the prior record so callers can return it as a warning.
type DuplicateError struct {
	StudentName string
	RollNumber  string
	Department  string
	Existing    Record
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("attendance already marked for %s today", e.StudentName)
}
