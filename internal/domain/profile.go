package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents a registered user. Birthday is validated to an age
// of at least 18 at sign-up and not re-checked afterwards.
type Profile struct {
	UID       uuid.UUID `json:"uid"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Birthday  time.Time `json:"birthday"`
	Phone     string    `json:"phone,omitempty"` // empty until the user finishes onboarding
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
