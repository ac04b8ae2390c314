package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. banned word in request text, radius out of range).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned when an operation loses a uniqueness or state
// race: a second accept on an already-accepted request, or a taken
// username. Handlers should map this to HTTP 409 Conflict.
var ErrConflict = errors.New("conflict")

// ErrUnauthorized is returned when credentials are rejected or a session
// is missing, expired, or revoked.
// Handlers should map this to HTTP 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrDeserialization is returned when a stored record cannot be converted
// into a valid domain entity (e.g. completed_at set without an acceptance).
// It indicates corrupt or hand-edited data, not bad user input.
var ErrDeserialization = errors.New("deserialization error")
