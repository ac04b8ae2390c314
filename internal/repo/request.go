package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/errandly/backend/internal/domain"
)

// RequestRepo defines the persistence operations for Requests.
// Accept and Complete are conditional writes: the WHERE clause carries
// the lifecycle guard so concurrent attempts are serialized by the
// database, not by application locks.
type RequestRepo interface {
	// Create inserts a new open request and returns the persisted record
	// (with DB-generated id and created_at populated).
	Create(ctx context.Context, request domain.Request) (domain.Request, error)

	// GetByID retrieves a single request by its UUID primary key.
	// Returns domain.ErrNotFound if no request with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Request, error)

	// ListOpen returns all requests that have not been accepted, newest first.
	ListOpen(ctx context.Context) ([]domain.Request, error)

	// ListCreatedBy returns requests posted by uid, newest first.
	ListCreatedBy(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) ([]domain.Request, error)

	// ListAcceptedBy returns requests accepted by uid, most recently
	// accepted first.
	ListAcceptedBy(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) ([]domain.Request, error)

	// Accept sets the acceptance fields iff the request is still open.
	// Exactly one of two concurrent calls can succeed; the loser gets
	// domain.ErrConflict. Returns domain.ErrNotFound if the id is unknown.
	Accept(ctx context.Context, id, userID uuid.UUID, durationMinutes int) (domain.Request, error)

	// Complete sets completed_at iff the request is accepted and not yet
	// completed. Returns domain.ErrConflict if the guard fails,
	// domain.ErrNotFound if the id is unknown.
	Complete(ctx context.Context, id uuid.UUID) (domain.Request, error)
}

// pgRequestRepo is the Postgres implementation of RequestRepo.
type pgRequestRepo struct {
	db db
}

// NewRequestRepo constructs a RequestRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewRequestRepo(db db) RequestRepo {
	return &pgRequestRepo{db: db}
}

const requestColumns = `id, requester_id, request_text, latitude, longitude, radius_meters,
	payment_amount, image_url, created_at, accepted_by, accepted_at, duration_minutes, completed_at`

func (r *pgRequestRepo) Create(ctx context.Context, request domain.Request) (domain.Request, error) {
	const q = `
		INSERT INTO requests (requester_id, request_text, latitude, longitude, radius_meters, payment_amount, image_url)
		VALUES (@requester_id, @request_text, @latitude, @longitude, @radius_meters, @payment_amount, @image_url)
		RETURNING ` + requestColumns

	args := pgx.NamedArgs{
		"requester_id":   request.RequesterID,
		"request_text":   request.RequestText,
		"latitude":       request.Location.Latitude,
		"longitude":      request.Location.Longitude,
		"radius_meters":  request.RadiusMeters,
		"payment_amount": request.PaymentAmount, // nil becomes NULL
		"image_url":      request.ImageURL,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanRequest(row)
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	const q = `SELECT ` + requestColumns + ` FROM requests WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanRequest(row)
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgRequestRepo) ListOpen(ctx context.Context) ([]domain.Request, error) {
	const q = `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE accepted_at IS NULL
		ORDER BY created_at DESC`

	return r.list(ctx, "ListOpen", q, nil)
}

func (r *pgRequestRepo) ListCreatedBy(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) ([]domain.Request, error) {
	const q = `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE requester_id = @uid
		ORDER BY created_at DESC
		LIMIT @limit OFFSET @offset`

	return r.list(ctx, "ListCreatedBy", q, pgx.NamedArgs{
		"uid":    uid,
		"limit":  page.Limit,
		"offset": page.Offset(),
	})
}

func (r *pgRequestRepo) ListAcceptedBy(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) ([]domain.Request, error) {
	const q = `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE accepted_by = @uid
		ORDER BY accepted_at DESC
		LIMIT @limit OFFSET @offset`

	return r.list(ctx, "ListAcceptedBy", q, pgx.NamedArgs{
		"uid":    uid,
		"limit":  page.Limit,
		"offset": page.Offset(),
	})
}

// Accept is the compare-and-swap guarding the double-accept race: the
// UPDATE only matches while accepted_at is still NULL, so of two
// concurrent accepts exactly one affects a row.
func (r *pgRequestRepo) Accept(ctx context.Context, id, userID uuid.UUID, durationMinutes int) (domain.Request, error) {
	const q = `
		UPDATE requests
		SET accepted_by      = @accepted_by,
		    accepted_at      = now(),
		    duration_minutes = @duration_minutes
		WHERE id = @id AND accepted_at IS NULL
		RETURNING ` + requestColumns

	args := pgx.NamedArgs{
		"id":               id,
		"accepted_by":      userID,
		"duration_minutes": durationMinutes,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Zero rows: either the id is unknown or someone else won the
			// race. Disambiguate with a plain read.
			return domain.Request{}, r.guardFailure(ctx, "Accept", id)
		}
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.Accept: %w", err)
	}
	return result, nil
}

func (r *pgRequestRepo) Complete(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	const q = `
		UPDATE requests
		SET completed_at = now()
		WHERE id = @id AND accepted_at IS NOT NULL AND completed_at IS NULL
		RETURNING ` + requestColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Request{}, r.guardFailure(ctx, "Complete", id)
		}
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.Complete: %w", err)
	}
	return result, nil
}

// guardFailure turns a zero-row conditional write into ErrNotFound or
// ErrConflict depending on whether the row exists at all.
func (r *pgRequestRepo) guardFailure(ctx context.Context, op string, id uuid.UUID) error {
	const q = `SELECT EXISTS (SELECT 1 FROM requests WHERE id = @id)`

	var exists bool
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&exists); err != nil {
		return fmt.Errorf("repo.RequestRepo.%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("repo.RequestRepo.%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("repo.RequestRepo.%s: %w", op, domain.ErrConflict)
}

func (r *pgRequestRepo) list(ctx context.Context, op, q string, args pgx.NamedArgs) ([]domain.Request, error) {
	var rows pgx.Rows
	var err error
	if args == nil {
		rows, err = r.db.Query(ctx, q)
	} else {
		rows, err = r.db.Query(ctx, q, args)
	}
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.%s: %w", op, err)
	}
	defer rows.Close()

	var requests []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.RequestRepo.%s: scan: %w", op, err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.%s: rows: %w", op, err)
	}

	return requests, nil
}

// scanRequest maps a single database row into a domain.Request.
// The three nullable acceptance columns collapse into one optional
// Acceptance struct; a half-set pair is reported as a deserialization
// error rather than silently producing an illegal entity.
func scanRequest(s scanner) (domain.Request, error) {
	var (
		req         domain.Request
		id          pgtype.UUID
		requester   pgtype.UUID
		payment     pgtype.Int4
		acceptedBy  pgtype.UUID
		acceptedAt  pgtype.Timestamptz
		duration    pgtype.Int4
		completedAt pgtype.Timestamptz
	)

	err := s.Scan(
		&id,
		&requester,
		&req.RequestText,
		&req.Location.Latitude,
		&req.Location.Longitude,
		&req.RadiusMeters,
		&payment,
		&req.ImageURL,
		&req.CreatedAt,
		&acceptedBy,
		&acceptedAt,
		&duration,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, domain.ErrNotFound
		}
		return domain.Request{}, err
	}

	req.ID = uuid.UUID(id.Bytes)
	req.RequesterID = uuid.UUID(requester.Bytes)
	if payment.Valid {
		p := int(payment.Int32)
		req.PaymentAmount = &p
	}
	if acceptedAt.Valid != acceptedBy.Valid {
		return domain.Request{}, fmt.Errorf("%w: request %s has a half-set acceptance", domain.ErrDeserialization, req.ID)
	}
	if acceptedAt.Valid {
		req.Acceptance = &domain.Acceptance{
			UserID:     uuid.UUID(acceptedBy.Bytes),
			AcceptedAt: acceptedAt.Time,
		}
		if duration.Valid {
			req.Acceptance.DurationMinutes = int(duration.Int32)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		req.CompletedAt = &t
	}
	if err := req.CheckShape(); err != nil {
		return domain.Request{}, err
	}

	return req, nil
}
