package handler

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/geo"
	"github.com/errandly/backend/internal/service"
)

// profileResponse is the API shape of a user profile. Warning carries
// the onboarding nudge while the account is incomplete.
type profileResponse struct {
	UID       openapi_types.UUID  `json:"uid"`
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
	Username  string              `json:"username"`
	Email     openapi_types.Email `json:"email"`
	Birthday  openapi_types.Date  `json:"birthday"`
	Phone     *string             `json:"phone,omitempty"`
	Warning   *string             `json:"warning,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func profileToResponse(p domain.Profile) profileResponse {
	resp := profileResponse{
		UID:       openapi_types.UUID(p.UID),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Username:  p.Username,
		Email:     openapi_types.Email(p.Email),
		Birthday:  openapi_types.Date{Time: p.Birthday},
		Phone:     nilIfEmpty(p.Phone),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if warning := service.AccountCompletionWarning(p); warning != "" {
		resp.Warning = &warning
	}
	return resp
}

// requestResponse is the API shape of an errand request. The lifecycle
// fields are flattened: accepted_* and completed_at are null while the
// request has not reached that state. RadiusDisplay is the stored radius
// rendered for humans ("850 ft", "1.2 mi"); DistanceMiles is filled only
// on the open list when the viewer sent their location.
type requestResponse struct {
	ID            openapi_types.UUID  `json:"id"`
	RequesterID   openapi_types.UUID  `json:"requester_id"`
	Text          string              `json:"text"`
	Latitude      float64             `json:"latitude"`
	Longitude     float64             `json:"longitude"`
	RadiusMeters  float64             `json:"radius_meters"`
	RadiusDisplay string              `json:"radius_display"`
	PaymentAmount *int                `json:"payment_amount,omitempty"`
	ImageURL      *string             `json:"image_url,omitempty"`
	Status        domain.Status       `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	AcceptedBy    *openapi_types.UUID `json:"accepted_by,omitempty"`
	AcceptedAt    *time.Time          `json:"accepted_at,omitempty"`
	DurationMin   *int                `json:"duration_minutes,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	DistanceMiles *float64            `json:"distance_miles,omitempty"`
}

// requestToResponse converts a domain.Request, computing the viewer's
// distance when their location is known. A distance that cannot be
// computed is simply omitted.
func requestToResponse(r domain.Request, viewer *domain.Coordinate) requestResponse {
	resp := requestResponse{
		ID:            openapi_types.UUID(r.ID),
		RequesterID:   openapi_types.UUID(r.RequesterID),
		Text:          r.RequestText,
		Latitude:      r.Location.Latitude,
		Longitude:     r.Location.Longitude,
		RadiusMeters:  r.RadiusMeters,
		RadiusDisplay: geo.FormatRadius(r.RadiusMeters),
		PaymentAmount: r.PaymentAmount,
		ImageURL:      nilIfEmpty(r.ImageURL),
		Status:        r.Status(),
		CreatedAt:     r.CreatedAt,
		CompletedAt:   r.CompletedAt,
	}
	if r.Acceptance != nil {
		acceptedBy := openapi_types.UUID(r.Acceptance.UserID)
		acceptedAt := r.Acceptance.AcceptedAt
		duration := r.Acceptance.DurationMinutes
		resp.AcceptedBy = &acceptedBy
		resp.AcceptedAt = &acceptedAt
		resp.DurationMin = &duration
	}
	if viewer != nil {
		if miles, err := geo.DistanceMiles(*viewer, r.Location); err == nil {
			resp.DistanceMiles = &miles
		}
	}
	return resp
}

func requestsToResponse(requests []domain.Request, viewer *domain.Coordinate) []requestResponse {
	out := make([]requestResponse, len(requests))
	for i, r := range requests {
		out[i] = requestToResponse(r, viewer)
	}
	return out
}

// nilIfEmpty converts an empty string to a nil pointer so optional JSON
// fields are omitted rather than sent as "".
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
