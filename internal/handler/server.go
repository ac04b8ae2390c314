// Package handler implements the HTTP handlers for the Errandly API.
// All handlers are methods on Server. Methods are split into
// domain-specific files (auth.go, request.go, etc.) but all share the
// same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/errandly/backend/internal/auth"
	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/feed"
	"github.com/errandly/backend/internal/middleware"
	"github.com/errandly/backend/internal/service"
)

// maxBodyBytes caps request bodies. Large enough for a JSON payload
// carrying a base64 photo, small enough to bound memory per request.
const maxBodyBytes = 8 << 20

// AccountServicer defines the account operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler
// tests inject a mock without touching the database or service layer.
type AccountServicer interface {
	SignUp(ctx context.Context, params service.SignUpParams) (domain.Profile, error)
	SignIn(ctx context.Context, email, password string) (service.Session, error)
	SignOut(ctx context.Context, sid string) error
	VerifySession(ctx context.Context, token string) (auth.Claims, error)
	GetProfile(ctx context.Context, uid uuid.UUID) (domain.Profile, error)
	UpdateProfile(ctx context.Context, uid uuid.UUID, params service.UpdateProfileParams) (domain.Profile, error)
}

// RequestServicer defines the errand request operations the handlers depend on.
type RequestServicer interface {
	Create(ctx context.Context, requesterID uuid.UUID, params service.CreateRequestParams) (domain.Request, error)
	Accept(ctx context.Context, requestID, userID uuid.UUID, durationMinutes int) (domain.Request, error)
	Complete(ctx context.Context, requestID, userID uuid.UUID) (domain.Request, error)
	ListOpen(ctx context.Context, viewer *domain.Coordinate) ([]domain.Request, error)
	History(ctx context.Context, uid uuid.UUID, page domain.PaginationParams) (domain.RequestHistory, error)
}

// FeedSubscriber hands out live update streams for the SSE endpoint.
// Satisfied by feed.Broadcaster. Nil disables the endpoint.
type FeedSubscriber interface {
	Subscribe(ctx context.Context) (<-chan feed.Update, func() error)
}

// Server holds the handlers' dependencies.
type Server struct {
	accounts AccountServicer
	requests RequestServicer
	feed     FeedSubscriber
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// feed may be nil; the live feed endpoint then reports 503.
func NewServer(accounts AccountServicer, requests RequestServicer, feedSub FeedSubscriber, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{accounts: accounts, requests: requests, feed: feedSub, log: log}
}

// Router builds the chi router with all routes and per-route auth.
// Cross-cutting middleware (request ID, logging, CORS) is wired by the
// caller around the returned handler.
func (s *Server) Router() http.Handler {
	requireAuth := middleware.NewAuthenticator(s.accounts)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewMaxBodySizeHandler(maxBodyBytes))

	r.Get("/healthz", s.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.signUp)
		r.Post("/signin", s.signIn)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/signout", s.signOut)
			r.Get("/me", s.me)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/profile", s.getProfile)
		r.Put("/profile", s.updateProfile)

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", s.createRequest)
			r.Get("/open", s.listOpen)
			r.Get("/feed", s.streamFeed)
			r.Get("/history", s.history)
			r.Post("/{id}/accept", s.acceptRequest)
			r.Post("/{id}/complete", s.completeRequest)
		})
	})

	return r
}
