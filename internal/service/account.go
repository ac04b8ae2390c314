// Package service contains the business logic for the Errandly API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/errandly/backend/internal/auth"
	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/repo"
)

// minSignUpAge is the minimum age in years at sign-up. A birthday
// exactly minSignUpAge years ago (same month and day) passes.
const minSignUpAge = 18

// DefaultSessionTTL is how long a sign-in session stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// accountIncompleteWarning gates request creation until onboarding is done.
const accountIncompleteWarning = "Finish setting up your account"

// AccountService implements sign-up, sign-in, and profile management.
type AccountService struct {
	profiles   repo.ProfileRepo
	sessions   auth.SessionStore
	jwt        *auth.JWTManager
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAccountService constructs an AccountService. A non-positive
// sessionTTL falls back to DefaultSessionTTL.
func NewAccountService(profiles repo.ProfileRepo, sessions auth.SessionStore, jwtManager *auth.JWTManager, sessionTTL time.Duration) *AccountService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AccountService{
		profiles:   profiles,
		sessions:   sessions,
		jwt:        jwtManager,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// SignUpParams carries the sign-up form fields.
type SignUpParams struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
	Birthday  time.Time
}

// Session is an authenticated session handed to a client after sign-in.
type Session struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	Profile   domain.Profile
}

// SignUp validates the form, checks username availability, hashes the
// password, and persists the profile.
// Returns domain.ErrValidation for rule violations and domain.ErrConflict
// when the username or email is already taken.
func (s *AccountService) SignUp(ctx context.Context, params SignUpParams) (domain.Profile, error) {
	if err := s.validateSignUp(params); err != nil {
		return domain.Profile{}, err
	}

	taken, err := s.profiles.UsernameTaken(ctx, params.Username)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.AccountService.SignUp: %w", err)
	}
	if taken {
		return domain.Profile{}, fmt.Errorf("%w: username is already taken", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.AccountService.SignUp: hash password: %w", err)
	}

	profile := domain.Profile{
		FirstName: strings.TrimSpace(params.FirstName),
		LastName:  strings.TrimSpace(params.LastName),
		Username:  strings.TrimSpace(params.Username),
		Email:     strings.TrimSpace(params.Email),
		Birthday:  params.Birthday,
	}

	created, err := s.profiles.Create(ctx, profile, string(hash))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.AccountService.SignUp: %w", err)
	}
	return created, nil
}

// SignIn verifies credentials and opens a session.
// Bad email and bad password are indistinguishable to the caller: both
// return domain.ErrUnauthorized.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (Session, error) {
	creds, err := s.profiles.GetCredentialsByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, domain.ErrUnauthorized
		}
		return Session{}, fmt.Errorf("service.AccountService.SignIn: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return Session{}, domain.ErrUnauthorized
	}

	sid := uuid.NewString()
	if err := s.sessions.Create(ctx, sid, creds.Profile.UID, s.sessionTTL); err != nil {
		return Session{}, fmt.Errorf("service.AccountService.SignIn: %w", err)
	}

	token, expiresAt, err := s.jwt.Generate(creds.Profile.UID, sid)
	if err != nil {
		return Session{}, fmt.Errorf("service.AccountService.SignIn: %w", err)
	}

	return Session{
		Token:     token,
		SessionID: sid,
		ExpiresAt: expiresAt,
		Profile:   creds.Profile,
	}, nil
}

// SignOut deletes the session; tokens carrying its id stop working.
func (s *AccountService) SignOut(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	if err := s.sessions.Delete(ctx, sid); err != nil {
		return fmt.Errorf("service.AccountService.SignOut: %w", err)
	}
	return nil
}

// VerifySession parses an access token and confirms its session is
// still registered. Returns domain.ErrUnauthorized otherwise.
func (s *AccountService) VerifySession(ctx context.Context, token string) (auth.Claims, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return auth.Claims{}, err
	}

	alive, err := s.sessions.Exists(ctx, claims.SessionID)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("service.AccountService.VerifySession: %w", err)
	}
	if !alive {
		return auth.Claims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

// GetProfile returns the profile for uid.
func (s *AccountService) GetProfile(ctx context.Context, uid uuid.UUID) (domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.AccountService.GetProfile: %w", err)
	}
	return profile, nil
}

// UpdateProfileParams carries the mutable profile fields. Username and
// email are fixed at sign-up.
type UpdateProfileParams struct {
	FirstName string
	LastName  string
	Birthday  time.Time
	Phone     string
}

// UpdateProfile overwrites the mutable profile fields.
// The age rule is enforced at sign-up only and deliberately not
// re-checked here.
func (s *AccountService) UpdateProfile(ctx context.Context, uid uuid.UUID, params UpdateProfileParams) (domain.Profile, error) {
	if strings.TrimSpace(params.FirstName) == "" {
		return domain.Profile{}, fmt.Errorf("%w: first name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.LastName) == "" {
		return domain.Profile{}, fmt.Errorf("%w: last name is required", domain.ErrValidation)
	}
	if params.Birthday.IsZero() {
		return domain.Profile{}, fmt.Errorf("%w: birthday is required", domain.ErrValidation)
	}

	updated, err := s.profiles.Update(ctx, domain.Profile{
		UID:       uid,
		FirstName: strings.TrimSpace(params.FirstName),
		LastName:  strings.TrimSpace(params.LastName),
		Birthday:  params.Birthday,
		Phone:     strings.TrimSpace(params.Phone),
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.AccountService.UpdateProfile: %w", err)
	}
	return updated, nil
}

// AccountCompletionWarning returns a human-readable warning when the
// profile is missing onboarding fields, or "" when it is complete.
// A profile is incomplete iff phone is empty. The warning gates request
// creation only; accepting requests is never gated.
func AccountCompletionWarning(profile domain.Profile) string {
	if strings.TrimSpace(profile.Phone) == "" {
		return accountIncompleteWarning
	}
	return ""
}

// validateSignUp enforces the sign-up form rules.
func (s *AccountService) validateSignUp(params SignUpParams) error {
	if strings.TrimSpace(params.FirstName) == "" {
		return fmt.Errorf("%w: first name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.LastName) == "" {
		return fmt.Errorf("%w: last name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.Username) == "" {
		return fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(params.Email)); err != nil {
		return fmt.Errorf("%w: please enter a valid email", domain.ErrValidation)
	}
	if msg := validatePassword(params.Password); msg != "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	}
	if params.Birthday.IsZero() {
		return fmt.Errorf("%w: birthday is required", domain.ErrValidation)
	}
	if !oldEnough(params.Birthday, s.now(), minSignUpAge) {
		return fmt.Errorf("%w: you must be at least 18 years old to sign up", domain.ErrValidation)
	}
	return nil
}

// oldEnough compares calendar dates, so a birthday exactly years ago
// today passes regardless of time-of-day or timezone offsets.
func oldEnough(birthday, now time.Time, years int) bool {
	cutoff := now.AddDate(-years, 0, 0)
	by, bm, bd := birthday.Date()
	cy, cm, cd := cutoff.Date()
	birthDate := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	cutoffDate := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)
	return !birthDate.After(cutoffDate)
}

// validatePassword returns the first violated password rule, or "".
func validatePassword(password string) string {
	if len(password) < 8 {
		return "password must be at least 8 characters long"
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return "password must include at least one uppercase letter"
	case !hasLower:
		return "password must include at least one lowercase letter"
	case !hasDigit:
		return "password must include at least one number"
	case !hasSpecial:
		return "password must include at least one special character"
	}
	return ""
}
