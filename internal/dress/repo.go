package dress

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a garment reference does not exist.
var ErrNotFound = errors.New("dress code not found")

// Repository persists garment references in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new garment reference with its base64-encoded image.
func (r *Repository) Create(ctx context.Context, instituteID int64, dressType, imageData string) (Reference, error) {
	ref := Reference{DressType: dressType, ImageData: imageData}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO dress_codes (institute_id, dress_type, image_data)
		VALUES ($1, $2, $3)
		RETURNING id
	`, instituteID, dressType, imageData)
	if err := row.Scan(&ref.ID); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// ListByInstitute returns every garment reference configured for an
// institute. The verifier requires the photo to match all of them.
func (r *Repository) ListByInstitute(ctx context.Context, instituteID int64) ([]Reference, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dress_type, image_data
		FROM dress_codes
		WHERE institute_id = $1
		ORDER BY id
	`, instituteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var ref Reference
		if err := rows.Scan(&ref.ID, &ref.DressType, &ref.ImageData); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Delete removes a garment reference by id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dress_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
