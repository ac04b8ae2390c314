// Package repo contains all database access logic for the Errandly API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/errandly/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// Credentials pairs a profile with its password hash. Only the auth
// service ever sees the hash; it is never returned on Profile itself.
type Credentials struct {
	Profile      domain.Profile
	PasswordHash string
}

// ProfileRepo defines the persistence operations for Profiles.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type ProfileRepo interface {
	// Create inserts a new profile with its password hash and returns the
	// persisted record. Returns domain.ErrConflict if the email or
	// username is already taken.
	Create(ctx context.Context, profile domain.Profile, passwordHash string) (domain.Profile, error)

	// GetByID retrieves a profile by uid.
	// Returns domain.ErrNotFound if no profile with that uid exists.
	GetByID(ctx context.Context, uid uuid.UUID) (domain.Profile, error)

	// GetCredentialsByEmail retrieves a profile and its password hash by
	// email for sign-in. Returns domain.ErrNotFound if the email is unknown.
	GetCredentialsByEmail(ctx context.Context, email string) (Credentials, error)

	// UsernameTaken reports whether any profile already holds username.
	UsernameTaken(ctx context.Context, username string) (bool, error)

	// Update overwrites the mutable fields (first/last name, birthday,
	// phone) and returns the updated record.
	// Returns domain.ErrNotFound if no profile with that uid exists.
	Update(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

// pgProfileRepo is the Postgres implementation of ProfileRepo.
type pgProfileRepo struct {
	db db
}

// NewProfileRepo constructs a ProfileRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewProfileRepo(db db) ProfileRepo {
	return &pgProfileRepo{db: db}
}

const profileColumns = `uid, first_name, last_name, username, email, birthday, phone, created_at, updated_at`

func (r *pgProfileRepo) Create(ctx context.Context, profile domain.Profile, passwordHash string) (domain.Profile, error) {
	const q = `
		INSERT INTO profiles (first_name, last_name, username, email, password_hash, birthday, phone)
		VALUES (@first_name, @last_name, @username, @email, @password_hash, @birthday, @phone)
		RETURNING ` + profileColumns

	args := pgx.NamedArgs{
		"first_name":    profile.FirstName,
		"last_name":     profile.LastName,
		"username":      profile.Username,
		"email":         profile.Email,
		"password_hash": passwordHash,
		"birthday":      profile.Birthday,
		"phone":         profile.Phone,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Create: email or username taken: %w", domain.ErrConflict)
		}
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgProfileRepo) GetByID(ctx context.Context, uid uuid.UUID) (domain.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE uid = @uid`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"uid": uid})
	result, err := scanProfile(row)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgProfileRepo) GetCredentialsByEmail(ctx context.Context, email string) (Credentials, error) {
	const q = `
		SELECT ` + profileColumns + `, password_hash
		FROM profiles
		WHERE lower(email) = lower(@email)`

	var (
		creds Credentials
		uid   pgtype.UUID
		bday  pgtype.Date
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"email": email}).Scan(
		&uid,
		&creds.Profile.FirstName,
		&creds.Profile.LastName,
		&creds.Profile.Username,
		&creds.Profile.Email,
		&bday,
		&creds.Profile.Phone,
		&creds.Profile.CreatedAt,
		&creds.Profile.UpdatedAt,
		&creds.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, fmt.Errorf("repo.ProfileRepo.GetCredentialsByEmail: %w", domain.ErrNotFound)
		}
		return Credentials{}, fmt.Errorf("repo.ProfileRepo.GetCredentialsByEmail: %w", err)
	}
	creds.Profile.UID = uuid.UUID(uid.Bytes)
	creds.Profile.Birthday = bday.Time
	return creds, nil
}

func (r *pgProfileRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM profiles WHERE lower(username) = lower(@username))`

	var taken bool
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"username": username}).Scan(&taken); err != nil {
		return false, fmt.Errorf("repo.ProfileRepo.UsernameTaken: %w", err)
	}
	return taken, nil
}

func (r *pgProfileRepo) Update(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	const q = `
		UPDATE profiles
		SET first_name = @first_name,
		    last_name  = @last_name,
		    birthday   = @birthday,
		    phone      = @phone,
		    updated_at = now()
		WHERE uid = @uid
		RETURNING ` + profileColumns

	args := pgx.NamedArgs{
		"uid":        profile.UID,
		"first_name": profile.FirstName,
		"last_name":  profile.LastName,
		"birthday":   profile.Birthday,
		"phone":      profile.Phone,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanProfile(row)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Update: %w", err)
	}
	return result, nil
}

// scanProfile maps a single database row into a domain.Profile.
func scanProfile(s scanner) (domain.Profile, error) {
	var (
		p    domain.Profile
		uid  pgtype.UUID
		bday pgtype.Date
	)

	err := s.Scan(&uid, &p.FirstName, &p.LastName, &p.Username, &p.Email, &bday, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, err
	}

	p.UID = uuid.UUID(uid.Bytes)
	p.Birthday = bday.Time
	return p, nil
}
