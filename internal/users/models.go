package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an account referenced by ownership and check records. Registration
// and authentication live in the identity provider; this service only reads.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
