package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when a roll number is already enrolled in the
// institute.
var ErrDuplicate = errors.New("student already enrolled")

// Student is one enrolled identity. FaceEncoding is the JSON-serialized
// embedding produced at enrollment; immutable thereafter.
type Student struct {
	ID           int64
	Name         string
	RollNumber   string
	Department   string
	InstituteID  int64
	FaceEncoding string
	PhotoURL     *string
	CreatedAt    time.Time
}

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new student. The unique index on (institute_id,
// roll_number) backstops concurrent enrollments; violations surface as
// ErrDuplicate.
func (r *Repository) Create(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (name, roll_number, department, institute_id, face_encoding, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, s.Name, s.RollNumber, s.Department, s.InstituteID, s.FaceEncoding, s.PhotoURL)
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Student{}, ErrDuplicate
		}
		return Student{}, err
	}
	return s, nil
}

// FindByRoll returns the student with the given roll number in an institute,
// or nil when none exists.
func (r *Repository) FindByRoll(ctx context.Context, instituteID int64, rollNumber string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, roll_number, department, institute_id, face_encoding, photo_url, created_at
		FROM students
		WHERE institute_id = $1 AND roll_number = $2
	`, instituteID, rollNumber)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.RollNumber, &s.Department, &s.InstituteID, &s.FaceEncoding, &s.PhotoURL, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// FindByID returns a single student.
func (r *Repository) FindByID(ctx context.Context, id int64) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, roll_number, department, institute_id, face_encoding, photo_url, created_at
		FROM students WHERE id = $1
	`, id)
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.RollNumber, &s.Department, &s.InstituteID, &s.FaceEncoding, &s.PhotoURL, &s.CreatedAt)
	return s, err
}

// ListByInstitute returns all students of an institute in enrollment order.
// The matcher depends on this ordering for deterministic tie-breaking.
func (r *Repository) ListByInstitute(ctx context.Context, instituteID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, roll_number, department, institute_id, face_encoding, photo_url, created_at
		FROM students
		WHERE institute_id = $1
		ORDER BY id
	`, instituteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.RollNumber, &s.Department, &s.InstituteID, &s.FaceEncoding, &s.PhotoURL, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
