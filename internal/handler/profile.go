package handler

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/middleware"
	"github.com/errandly/backend/internal/service"
)

type updateProfileRequest struct {
	FirstName string             `json:"first_name"`
	LastName  string             `json:"last_name"`
	Birthday  openapi_types.Date `json:"birthday"`
	Phone     string             `json:"phone"`
}

// getProfile handles GET /profile.
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	profile, err := s.accounts.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, profileToResponse(profile))
}

// updateProfile handles PUT /profile. Username and email are fixed at
// sign-up; the body carries only the mutable fields.
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	updated, err := s.accounts.UpdateProfile(r.Context(), claims.UserID, service.UpdateProfileParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Birthday:  req.Birthday.Time,
		Phone:     req.Phone,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, profileToResponse(updated))
}
