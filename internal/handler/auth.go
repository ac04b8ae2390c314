package handler

import (
	"errors"
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/middleware"
	"github.com/errandly/backend/internal/service"
)

type signUpRequest struct {
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
	Username  string              `json:"username"`
	Email     openapi_types.Email `json:"email"`
	Password  string              `json:"password"`
	Birthday  openapi_types.Date  `json:"birthday"`
}

type signInRequest struct {
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   profileResponse `json:"profile"`
}

// signUp handles POST /auth/signup.
func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	profile, err := s.accounts.SignUp(r.Context(), service.SignUpParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     string(req.Email),
		Password:  req.Password,
		Birthday:  req.Birthday.Time,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, profileToResponse(profile))
}

// signIn handles POST /auth/signin. Bad email and bad password get the
// same answer so the endpoint does not leak which accounts exist.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	session, err := s.accounts.SignIn(r.Context(), string(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: errorDetail{Code: "unauthorized", Message: "Username or password is incorrect."},
			})
			return
		}
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Profile:   profileToResponse(session.Profile),
	})
}

// signOut handles POST /auth/signout. The session to close comes from
// the verified token, never from the request body.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, domain.ErrUnauthorized)
		return
	}

	if err := s.accounts.SignOut(r.Context(), claims.SessionID); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /auth/me.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
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
