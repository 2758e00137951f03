package calendar

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository persists holiday overrides in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindOverride returns the override for (institute, date), or nil when none
// exists.
func (r *Repository) FindOverride(ctx context.Context, instituteID int64, day time.Time) (*Override, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, institute_id, date, is_holiday, COALESCE(reason, '')
		FROM holidays
		WHERE institute_id = $1 AND date = $2
	`, instituteID, day.Format("2006-01-02"))
	var o Override
	if err := row.Scan(&o.ID, &o.InstituteID, &o.Date, &o.IsHoliday, &o.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// Upsert creates or updates the override for (institute, date). Keyed on the
// composite unique index so repeated toggles update in place.
func (r *Repository) Upsert(ctx context.Context, instituteID int64, day time.Time, isHoliday bool, reason string) error {
	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holidays (institute_id, date, is_holiday, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (institute_id, date) DO UPDATE SET
			is_holiday = EXCLUDED.is_holiday,
			reason = COALESCE(EXCLUDED.reason, holidays.reason)
	`, instituteID, day.Format("2006-01-02"), isHoliday, reasonArg)
	return err
}

// ListByInstitute returns all overrides for an institute.
func (r *Repository) ListByInstitute(ctx context.Context, instituteID int64) ([]Override, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, institute_id, date, is_holiday, COALESCE(reason, '')
		FROM holidays
		WHERE institute_id = $1
		ORDER BY date
	`, instituteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.ID, &o.InstituteID, &o.Date, &o.IsHoliday, &o.Reason); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Resolver answers "is marking permitted today" for an institute by combining
// the stored override (if any) with the default calendar.
type Resolver struct {
	repo *Repository
}

// NewResolver creates a resolver backed by the holiday repo.
func NewResolver(repo *Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Check looks up the override for (institute, day) and resolves the policy.
func (s *Resolver) Check(ctx context.Context, instituteID int64, day time.Time) (Decision, error) {
	override, err := s.repo.FindOverride(ctx, instituteID, day)
	if err != nil {
		return Decision{}, err
	}
	return Resolve(override, day), nil
}
