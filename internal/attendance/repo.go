package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const dateFormat = "2006-01-02"

// FindByStudentAndDate returns the record for (student, day), or nil when the
// student has not been recorded that day.
func (r *Repository) FindByStudentAndDate(ctx context.Context, studentID int64, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, date, time::text, status, face_match, dress_code_match, created_at
		FROM attendance
		WHERE student_id = $1 AND date = $2
	`, studentID, day.Format(dateFormat))
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Time, &rec.Status, &rec.FaceMatch, &rec.DressMatch, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertIfAbsent atomically creates the record for (student, day). The unique
// index on (student_id, date) makes this safe under concurrent requests: the
// loser of a race gets inserted=false and the winner's record back.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec Record) (Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (student_id, date, time, status, face_match, dress_code_match)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, date) DO NOTHING
		RETURNING id, created_at
	`, rec.StudentID, rec.Date.Format(dateFormat), rec.Time, rec.Status, rec.FaceMatch, rec.DressMatch)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, ferr := r.FindByStudentAndDate(ctx, rec.StudentID, rec.Date)
			if ferr != nil {
				return Record{}, false, ferr
			}
			if existing == nil {
				return Record{}, false, errors.New("conflicting attendance record disappeared")
			}
			return *existing, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

// ListByInstituteAndDate returns all records of an institute for one day,
// joined with student details.
func (r *Repository) ListByInstituteAndDate(ctx context.Context, instituteID int64, day time.Time) ([]DayEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.date, a.time::text, a.status, a.face_match, a.dress_code_match, a.created_at,
		       s.name, s.roll_number, s.department
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE s.institute_id = $1 AND a.date = $2
		ORDER BY a.time
	`, instituteID, day.Format(dateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDayEntries(rows)
}

// ListByInstituteAndRange returns records between from and to inclusive,
// newest first, for reporting.
func (r *Repository) ListByInstituteAndRange(ctx context.Context, instituteID int64, from, to time.Time) ([]DayEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.date, a.time::text, a.status, a.face_match, a.dress_code_match, a.created_at,
		       s.name, s.roll_number, s.department
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE s.institute_id = $1 AND a.date >= $2 AND a.date <= $3
		ORDER BY a.date DESC, a.time DESC
	`, instituteID, from.Format(dateFormat), to.Format(dateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDayEntries(rows)
}

func scanDayEntries(rows *sql.Rows) ([]DayEntry, error) {
	var out []DayEntry
	for rows.Next() {
		var e DayEntry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Date, &e.Time, &e.Status, &e.FaceMatch, &e.DressMatch, &e.CreatedAt,
			&e.StudentName, &e.RollNumber, &e.Department); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearByInstitute deletes every attendance record of an institute and
// returns the number removed. Administrative bulk action only.
func (r *Repository) ClearByInstitute(ctx context.Context, instituteID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM attendance
		WHERE student_id IN (SELECT id FROM students WHERE institute_id = $1)
	`, instituteID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
