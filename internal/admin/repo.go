package admin

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Admin is an institute administrator account.
type Admin struct {
	ID          int64
	Name        string
	Email       string
	Password    string // hex SHA-256 digest
	InstituteID int64
	CreatedAt   time.Time
}

// ResetToken is a one-time OTP stored for password reset.
type ResetToken struct {
	ID        int64
	AdminID   int64
	Token     string
	ExpiresAt time.Time
	Used      bool
}

// Repository persists admins and reset tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByEmail returns the admin with the given email, or nil.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, institute_id, created_at
		FROM admins WHERE email = $1
	`, email)
	var a Admin
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Password, &a.InstituteID, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new admin.
func (r *Repository) Create(ctx context.Context, a Admin) (Admin, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO admins (name, email, password, institute_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, a.Name, a.Email, a.Password, a.InstituteID)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return Admin{}, err
	}
	return a, nil
}

// UpdatePassword replaces an admin's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, adminID int64, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE admins SET password = $2 WHERE id = $1`, adminID, passwordHash)
	return err
}

// ReplaceToken deletes any unused tokens for the admin and stores a new one,
// keeping at most one OTP active per account.
func (r *Repository) ReplaceToken(ctx context.Context, adminID int64, token string, expiresAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM password_reset_tokens WHERE admin_id = $1 AND used = FALSE
	`, adminID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (admin_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, adminID, token, expiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// FindUnusedToken returns the unused token row matching (admin, token), or
// nil. Expiry is checked by the caller so it can distinguish "invalid" from
// "expired".
func (r *Repository) FindUnusedToken(ctx context.Context, adminID int64, token string) (*ResetToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, admin_id, token, expires_at, used
		FROM password_reset_tokens
		WHERE admin_id = $1 AND token = $2 AND used = FALSE
	`, adminID, token)
	var t ResetToken
	if err := row.Scan(&t.ID, &t.AdminID, &t.Token, &t.ExpiresAt, &t.Used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// MarkTokenUsed consumes a token.
func (r *Repository) MarkTokenUsed(ctx context.Context, tokenID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE WHERE id = $1`, tokenID)
	return err
}
