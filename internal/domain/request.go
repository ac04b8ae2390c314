// Package domain contains the core data types for the Errandly API.
// This package has zero external dependencies beyond uuid and is imported
// by every other internal package (repo, service, handler).
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Request.
// The lifecycle is strictly linear: open → accepted → completed.
// There is no cancellation and no path back to open.
type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
)

// Acceptance records who took a request and when. Grouping the three
// fields in one optional struct makes "accepted_at without an accepting
// user" unrepresentable.
type Acceptance struct {
	UserID          uuid.UUID `json:"user_id"`
	AcceptedAt      time.Time `json:"accepted_at"`
	DurationMinutes int       `json:"duration_minutes"` // accepter's estimate, set at acceptance
}

// Request represents a posted errand. Once accepted, RequestText,
// Location, RadiusMeters, and PaymentAmount are immutable; no update
// path exists.
type Request struct {
	ID            uuid.UUID   `json:"id"`
	RequesterID   uuid.UUID   `json:"requester_id"`
	RequestText   string      `json:"request_text"`
	Location      Coordinate  `json:"location"`
	RadiusMeters  float64     `json:"radius_meters"`
	PaymentAmount *int        `json:"payment_amount,omitempty"` // whole dollars; nil when unpaid
	ImageURL      string      `json:"image_url,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	Acceptance    *Acceptance `json:"acceptance,omitempty"` // nil while open
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// Status derives the lifecycle state from the optional fields.
func (r Request) Status() Status {
	switch {
	case r.CompletedAt != nil:
		return StatusCompleted
	case r.Acceptance != nil:
		return StatusAccepted
	default:
		return StatusOpen
	}
}

// CheckShape verifies the state invariants that SQL CHECK constraints
// also guard: a completion requires an acceptance. Repos call this after
// scanning so a corrupt row surfaces as ErrDeserialization instead of a
// silently illegal entity.
func (r Request) CheckShape() error {
	if r.CompletedAt != nil && r.Acceptance == nil {
		return fmt.Errorf("%w: request %s has completed_at but no acceptance", ErrDeserialization, r.ID)
	}
	return nil
}

// RequestHistory is a user's created requests split by state for history
// display, plus the requests they accepted for others.
// The three created buckets are disjoint and together hold every
// created request returned.
type RequestHistory struct {
	Open       []Request `json:"open"`
	InProgress []Request `json:"in_progress"`
	Completed  []Request `json:"completed"`
	Accepted   []Request `json:"accepted"`
}

// PartitionByStatus splits requests into the three history buckets.
// Every input request lands in exactly one bucket.
func PartitionByStatus(requests []Request) (open, inProgress, completed []Request) {
	open = []Request{}
	inProgress = []Request{}
	completed = []Request{}
	for _, r := range requests {
		switch r.Status() {
		case StatusCompleted:
			completed = append(completed, r)
		case StatusAccepted:
			inProgress = append(inProgress, r)
		default:
			open = append(open, r)
		}
	}
	return open, inProgress, completed
}
