package attendance

import "time"

// Status labels written into attendance records.
const (
	StatusPresent   = "Present"
	StatusViolation = "Present - Dress Code Violation"
)

// Record is one authoritative attendance event: exactly one per (student,
// calendar day), created by the decision service and never updated.
type Record struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	Date       time.Time `json:"date"`
	Time       string    `json:"time"` // HH:MM:SS
	Status     string    `json:"status"`
	FaceMatch  bool      `json:"face_match"`
	DressMatch bool      `json:"dress_code_match"`
	CreatedAt  time.Time `json:"created_at"`
}

// DayEntry is a record joined with its student, for daily listings and
// exports.
type DayEntry struct {
	Record
	StudentName string `json:"student_name"`
	RollNumber  string `json:"roll_number"`
	Department  string `json:"department"`
}
