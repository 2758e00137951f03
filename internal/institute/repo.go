package institute

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no institute matches the given name or id.
var ErrNotFound = errors.New("institute not found")

// Institute is the identity-scoping root: students, garment references,
// holiday overrides and admins all belong to exactly one institute.
type Institute struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Repository persists institutes in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByName looks an institute up by name, case-insensitively and ignoring
// surrounding whitespace. Returns ErrNotFound when no row matches.
func (r *Repository) FindByName(ctx context.Context, name string) (*Institute, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM institutes
		WHERE LOWER(TRIM(name)) = LOWER($1)
	`, strings.TrimSpace(name))
	var inst Institute
	if err := row.Scan(&inst.ID, &inst.Name, &inst.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// FindByID returns the institute with the given id, or ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Institute, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM institutes WHERE id = $1`, id)
	var inst Institute
	if err := row.Scan(&inst.ID, &inst.Name, &inst.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// FindOrCreate returns the institute with the given name, creating it on
// first use. Registration paths rely on this; the marking flow deliberately
// does not.
func (r *Repository) FindOrCreate(ctx context.Context, name string) (*Institute, error) {
	inst, err := r.FindByName(ctx, name)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO institutes (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`, strings.TrimSpace(name))
	var created Institute
	if err := row.Scan(&created.ID, &created.Name, &created.CreatedAt); err != nil {
		return nil, err
	}
	return &created, nil
}
