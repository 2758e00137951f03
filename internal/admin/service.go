package admin

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"smartattend/internal/institute"
)

// Service errors surfaced to handlers.
var (
	ErrEmailTaken         = errors.New("admin with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
	ErrExpiredOTP         = errors.New("OTP has expired")
	ErrWeakPassword       = errors.New("password must be at least 6 characters long")
)

// Mailer delivers OTP emails.
type Mailer interface {
	SendOTP(ctx context.Context, toEmail, adminName, otp string) error
}

// Service manages admin accounts and OTP-based password reset.
type Service struct {
	admins     *Repository
	institutes *institute.Repository
	mailer     Mailer
	otpExpiry  time.Duration

	now func() time.Time
}

// NewService creates the admin service.
func NewService(admins *Repository, institutes *institute.Repository, mailer Mailer, otpExpiry time.Duration) *Service {
	if otpExpiry <= 0 {
		otpExpiry = 10 * time.Minute
	}
	return &Service{
		admins:     admins,
		institutes: institutes,
		mailer:     mailer,
		otpExpiry:  otpExpiry,
		now:        time.Now,
	}
}

// Register creates a new admin account; the institute is created on first
// use.
func (s *Service) Register(ctx context.Context, name, email, password, instituteName string) error {
	if existing, err := s.admins.FindByEmail(ctx, email); err != nil {
		return err
	} else if existing != nil {
		return ErrEmailTaken
	}

	inst, err := s.institutes.FindOrCreate(ctx, instituteName)
	if err != nil {
		return fmt.Errorf("resolve institute: %w", err)
	}

	_, err = s.admins.Create(ctx, Admin{
		Name:        name,
		Email:       email,
		Password:    hashPassword(password),
		InstituteID: inst.ID,
	})
	return err
}

// Login verifies credentials and returns the admin with its institute.
func (s *Service) Login(ctx context.Context, email, password string) (*Admin, *institute.Institute, error) {
	a, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if a == nil || subtle.ConstantTimeCompare([]byte(a.Password), []byte(hashPassword(password))) != 1 {
		return nil, nil, ErrInvalidCredentials
	}

	inst, err := s.institutes.FindByID(ctx, a.InstituteID)
	if err != nil && !errors.Is(err, institute.ErrNotFound) {
		return nil, nil, err
	}
	return a, inst, nil
}

// RequestOTP generates and emails a 6-digit OTP. Returns nil for unknown
// emails so the endpoint does not leak which accounts exist.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	a, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if a == nil {
		log.Printf("admin: OTP requested for unknown email")
		return nil
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.otpExpiry)

	if err := s.admins.ReplaceToken(ctx, a.ID, otp, expiresAt); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, a.Email, a.Name, otp); err != nil {
		return fmt.Errorf("send OTP email: %w", err)
	}
	return nil
}

// VerifyOTP checks an OTP without consuming it.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (*Admin, error) {
	a, token, err := s.lookupToken(ctx, email, otp)
	if err != nil {
		return nil, err
	}
	if s.now().After(token.ExpiresAt) {
		return nil, ErrExpiredOTP
	}
	return a, nil
}

// ResetPassword verifies the OTP, updates the password and consumes the
// token.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	a, token, err := s.lookupToken(ctx, email, otp)
	if err != nil {
		return err
	}
	if s.now().After(token.ExpiresAt) {
		return ErrExpiredOTP
	}
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}

	if err := s.admins.UpdatePassword(ctx, a.ID, hashPassword(newPassword)); err != nil {
		return err
	}
	return s.admins.MarkTokenUsed(ctx, token.ID)
}

func (s *Service) lookupToken(ctx context.Context, email, otp string) (*Admin, *ResetToken, error) {
	a, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, ErrInvalidOTP
	}
	token, err := s.admins.FindUnusedToken(ctx, a.ID, otp)
	if err != nil {
		return nil, nil, err
	}
	if token == nil {
		return nil, nil, ErrInvalidOTP
	}
	return a, token, nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// generateOTP returns a 6-digit numeric code, each digit drawn uniformly
// from crypto/rand.
func generateOTP() (string, error) {
	digits := make([]byte, 6)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
