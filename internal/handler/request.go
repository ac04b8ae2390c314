package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/middleware"
	"github.com/errandly/backend/internal/service"
)

// createRequestRequest is the POST /requests body. Image is optional,
// base64-encoded by encoding/json's []byte handling.
type createRequestRequest struct {
	Text             string  `json:"text"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	RadiusMeters     float64 `json:"radius_meters"`
	PaymentAmount    *int    `json:"payment_amount,omitempty"`
	Image            []byte  `json:"image,omitempty"`
	ImageContentType string  `json:"image_content_type,omitempty"`
}

type acceptRequestRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

type openListResponse struct {
	Data []requestResponse `json:"data"`
}

type historyResponse struct {
	Open       []requestResponse `json:"open"`
	InProgress []requestResponse `json:"in_progress"`
	Completed  []requestResponse `json:"completed"`
	Accepted   []requestResponse `json:"accepted"`
}

// createRequest handles POST /requests.
func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	var req createRequestRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	params := service.CreateRequestParams{
		Text:          req.Text,
		Location:      domain.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		RadiusMeters:  req.RadiusMeters,
		PaymentAmount: req.PaymentAmount,
	}
	if len(req.Image) > 0 {
		contentType := req.ImageContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		params.Image = &service.ImageUpload{Data: req.Image, ContentType: contentType}
	}

	created, err := s.requests.Create(r.Context(), claims.UserID, params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, requestToResponse(created, nil))
}

// listOpen handles GET /requests/open. Optional ?lat=&lon= identify the
// viewer's location; with them each result carries distance_miles and,
// when the radius policy is on, results outside their radius are dropped.
func (s *Server) listOpen(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.viewerFromQuery(w, r)
	if !ok {
		return
	}

	open, err := s.requests.ListOpen(r.Context(), viewer)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, openListResponse{Data: requestsToResponse(open, viewer)})
}

// history handles GET /requests/history. Supports ?page= and ?limit=
// (defaults: page=1, limit=20, max=100).
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	page := intQuery(r, "page")
	limit := intQuery(r, "limit")

	hist, err := s.requests.History(r.Context(), claims.UserID, domain.NewPaginationParams(page, limit))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, historyResponse{
		Open:       requestsToResponse(hist.Open, nil),
		InProgress: requestsToResponse(hist.InProgress, nil),
		Completed:  requestsToResponse(hist.Completed, nil),
		Accepted:   requestsToResponse(hist.Accepted, nil),
	})
}

// acceptRequest handles POST /requests/{id}/accept.
func (s *Server) acceptRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid request id")
		return
	}

	var req acceptRequestRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	accepted, err := s.requests.Accept(r.Context(), id, claims.UserID, req.DurationMinutes)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, requestToResponse(accepted, nil))
}

// completeRequest handles POST /requests/{id}/complete.
func (s *Server) completeRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid request id")
		return
	}

	completed, err := s.requests.Complete(r.Context(), id, claims.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, requestToResponse(completed, nil))
}

// viewerFromQuery parses the optional lat/lon query pair. Returns a nil
// coordinate when neither is present; rejects a half-set pair.
func (s *Server) viewerFromQuery(w http.ResponseWriter, r *http.Request) (*domain.Coordinate, bool) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" && lonStr == "" {
		return nil, true
	}
	if latStr == "" || lonStr == "" {
		s.badRequest(w, "lat and lon must be provided together")
		return nil, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		s.badRequest(w, "invalid lat")
		return nil, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		s.badRequest(w, "invalid lon")
		return nil, false
	}

	viewer := domain.Coordinate{Latitude: lat, Longitude: lon}
	if err := viewer.Validate(); err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return &viewer, true
}

// intQuery parses an integer query parameter, returning nil when absent
// or unparseable so pagination falls back to its defaults.
func intQuery(r *http.Request, key string) *int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
