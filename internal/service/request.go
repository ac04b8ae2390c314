package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/feed"
	"github.com/errandly/backend/internal/geo"
	"github.com/errandly/backend/internal/moderation"
	"github.com/errandly/backend/internal/repo"
)

const (
	maxRequestTextLen = 500
	minRadiusMeters   = 1.0
	maxRadiusMeters   = 40000.0
)

// BlobStore is the slice of object storage the request service needs.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// FeedPublisher pushes open-set changes to live subscribers.
type FeedPublisher interface {
	Publish(ctx context.Context, update feed.Update) error
}

// EventSink receives lifecycle events for downstream consumers.
type EventSink interface {
	RequestCreated(request domain.Request) error
	RequestAccepted(request domain.Request) error
	RequestCompleted(request domain.Request) error
}

// RequestServiceOptions carries the optional collaborators. Any nil
// field simply disables that side effect (and image uploads fail
// validation when Blobs is nil).
type RequestServiceOptions struct {
	Blobs  BlobStore
	Feed   FeedPublisher
	Events EventSink
	Filter *moderation.Filter
	Logger *slog.Logger

	// RadiusFilter turns on proximity filtering of the open list: a
	// request is only shown to viewers within its stored radius. Off by
	// default pending product clarification of the radius semantics.
	RadiusFilter bool
}

// RequestService implements the request lifecycle: create, accept,
// complete, and the open/history queries.
type RequestService struct {
	requests repo.RequestRepo
	profiles repo.ProfileRepo
	opts     RequestServiceOptions
	log      *slog.Logger
	filter   *moderation.Filter
}

// NewRequestService constructs a RequestService backed by the provided repos.
func NewRequestService(requests repo.RequestRepo, profiles repo.ProfileRepo, opts RequestServiceOptions) *RequestService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	filter := opts.Filter
	if filter == nil {
		filter = moderation.MustNewFilter(moderation.DefaultBannedWords)
	}
	return &RequestService{
		requests: requests,
		profiles: profiles,
		opts:     opts,
		log:      log,
		filter:   filter,
	}
}

// ImageUpload is a photo attached to a new request.
type ImageUpload struct {
	Data        []byte
	ContentType string
}

// CreateRequestParams carries the create-request form fields.
type CreateRequestParams struct {
	Text          string
	Location      domain.Coordinate
	RadiusMeters  float64
	PaymentAmount *int
	Image         *ImageUpload
}

// Create validates and persists a new open request for requesterID.
// Creation is gated on account completeness: a profile without a phone
// number cannot post.
func (s *RequestService) Create(ctx context.Context, requesterID uuid.UUID, params CreateRequestParams) (domain.Request, error) {
	profile, err := s.profiles.GetByID(ctx, requesterID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service.RequestService.Create: %w", err)
	}
	if warning := AccountCompletionWarning(profile); warning != "" {
		return domain.Request{}, fmt.Errorf("%w: %s", domain.ErrValidation, strings.ToLower(warning))
	}

	if err := s.validateCreate(params); err != nil {
		return domain.Request{}, err
	}

	request := domain.Request{
		RequesterID:   requesterID,
		RequestText:   strings.TrimSpace(params.Text),
		Location:      params.Location,
		RadiusMeters:  params.RadiusMeters,
		PaymentAmount: params.PaymentAmount,
	}

	if params.Image != nil {
		if s.opts.Blobs == nil {
			return domain.Request{}, fmt.Errorf("%w: image uploads are not enabled", domain.ErrValidation)
		}
		key := "requests/" + uuid.NewString() + ".jpg"
		url, err := s.opts.Blobs.Upload(ctx, key, params.Image.Data, params.Image.ContentType)
		if err != nil {
			return domain.Request{}, fmt.Errorf("service.RequestService.Create: upload image: %w", err)
		}
		request.ImageURL = url
	}

	created, err := s.requests.Create(ctx, request)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service.RequestService.Create: %w", err)
	}

	s.publishFeed(ctx, feed.Update{Kind: feed.KindCreated, Request: created})
	s.publishEvent(created, feed.KindCreated)
	return created, nil
}

// Accept transitions an open request to accepted on behalf of userID.
// durationMinutes is the accepter's completion estimate.
// Exactly one of any set of concurrent accepts succeeds; the rest get
// domain.ErrConflict from the conditional write in the repo.
func (s *RequestService) Accept(ctx context.Context, requestID, userID uuid.UUID, durationMinutes int) (domain.Request, error) {
	if durationMinutes <= 0 {
		return domain.Request{}, fmt.Errorf("%w: duration must be a positive number of minutes", domain.ErrValidation)
	}

	existing, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service.RequestService.Accept: %w", err)
	}
	if existing.RequesterID == userID {
		return domain.Request{}, fmt.Errorf("%w: you cannot accept your own request", domain.ErrValidation)
	}

	accepted, err := s.requests.Accept(ctx, requestID, userID, durationMinutes)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service.RequestService.Accept: %w", err)
	}

	s.publishFeed(ctx, feed.Update{Kind: feed.KindAccepted, Request: accepted})
	s.publishEvent(accepted, feed.KindAccepted)
	return accepted, nil
}

// Complete marks an accepted request done. Only the accepting user may
// complete it.
func (s *RequestService) Complete(ctx context.Context, requestID, userID uuid.UUID) (domain.Request, error) {
	existing, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service.RequestService.Complete: %w", err)
	}
	if existing.Acceptance == nil {
		return domain.Request{}, fmt.Errorf("service.RequestService.Complete: request is not accepted: %w", domain.ErrConflict)
	}
	if existing.Acceptance.UserID != userID {
		return domain.Request{}, fmt.Errorf("service.RequestService.Complete: only the accepter may complete: %w", domain.ErrUnauthorized)
	}

	completed, err := s.requests.Complete(ctx, requestID)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service.RequestService.Complete: %w", err)
	}

	s.publishFeed(ctx, feed.Update{Kind: feed.KindCompleted, Request: completed})
	s.publishEvent(completed, feed.KindCompleted)
	return completed, nil
}

// ListOpen returns all requests with no acceptance, newest first.
// When the radius policy is on and a viewer location is given, requests
// whose stored radius is smaller than the viewer's distance to the
// origin are dropped. Always returns a non-nil slice.
func (s *RequestService) ListOpen(ctx context.Context, viewer *domain.Coordinate) ([]domain.Request, error) {
	open, err := s.requests.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.RequestService.ListOpen: %w", err)
	}
	if open == nil {
		open = []domain.Request{}
	}

	if !s.opts.RadiusFilter || viewer == nil {
		return open, nil
	}
	if err := viewer.Validate(); err != nil {
		return nil, err
	}

	visible := make([]domain.Request, 0, len(open))
	for _, r := range open {
		d, err := geo.DistanceMeters(*viewer, r.Location)
		if err != nil {
			// A stored request with bad coordinates should not break the
			// whole feed; skip it.
			s.log.Warn("skipping request with invalid location", "request_id", r.ID, "error", err)
			continue
		}
		if d <= r.RadiusMeters {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

// History returns uid's created requests split by state plus the
// requests they accepted. The three created buckets are disjoint and
// together contain every created request returned.
func (s *RequestService) History(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) (domain.RequestHistory, error) {
	created, err := s.requests.ListCreatedBy(ctx, uid, page)
	if err != nil {
		return domain.RequestHistory{}, fmt.Errorf("service.RequestService.History: %w", err)
	}
	accepted, err := s.requests.ListAcceptedBy(ctx, uid, page)
	if err != nil {
		return domain.RequestHistory{}, fmt.Errorf("service.RequestService.History: %w", err)
	}
	if accepted == nil {
		accepted = []domain.Request{}
	}

	open, inProgress, completed := domain.PartitionByStatus(created)
	return domain.RequestHistory{
		Open:       open,
		InProgress: inProgress,
		Completed:  completed,
		Accepted:   accepted,
	}, nil
}

func (s *RequestService) validateCreate(params CreateRequestParams) error {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return fmt.Errorf("%w: request text is required", domain.ErrValidation)
	}
	// The limit counts characters, not bytes, so multibyte text is not
	// penalized.
	if utf8.RuneCountInString(text) > maxRequestTextLen {
		return fmt.Errorf("%w: request text must be at most %d characters", domain.ErrValidation, maxRequestTextLen)
	}
	if err := s.filter.ValidateRequestText(text); err != nil {
		return err
	}
	if err := params.Location.Validate(); err != nil {
		return err
	}
	if params.RadiusMeters < minRadiusMeters || params.RadiusMeters > maxRadiusMeters {
		return fmt.Errorf("%w: radius must be between %.0f and %.0f meters", domain.ErrValidation, minRadiusMeters, maxRadiusMeters)
	}
	if params.PaymentAmount != nil && *params.PaymentAmount < 0 {
		return fmt.Errorf("%w: payment amount cannot be negative", domain.ErrValidation)
	}
	return nil
}

// publishFeed and publishEvent are best-effort: a dropped push degrades
// liveness, not correctness, so failures are logged and swallowed.
func (s *RequestService) publishFeed(ctx context.Context, update feed.Update) {
	if s.opts.Feed == nil {
		return
	}
	if err := s.opts.Feed.Publish(ctx, update); err != nil {
		s.log.Error("publish feed update", "kind", update.Kind, "request_id", update.Request.ID, "error", err)
	}
}

func (s *RequestService) publishEvent(request domain.Request, kind feed.Kind) {
	if s.opts.Events == nil {
		return
	}
	var err error
	switch kind {
	case feed.KindCreated:
		err = s.opts.Events.RequestCreated(request)
	case feed.KindAccepted:
		err = s.opts.Events.RequestAccepted(request)
	case feed.KindCompleted:
		err = s.opts.Events.RequestCompleted(request)
	}
	if err != nil {
		s.log.Error("publish lifecycle event", "kind", kind, "request_id", request.ID, "error", err)
	}
}
