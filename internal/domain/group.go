package domain

import (
	"time"

	"github.com/google/uuid"
)

// Group scopes leaderboards and prediction admission.
type Group struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the group fields.
func (g *Group) Validate() error {
	if g.Name == "" {
		return ErrValidation("group name is required")
	}
	if len(g.Name) > 120 {
		return ErrValidation("group name must be at most 120 characters")
	}
	return nil
}

// GroupMembership links a user to a group. A prediction is admissible only
// while the membership is active.
type GroupMembership struct {
	GroupID  uuid.UUID  `json:"group_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Active   bool       `json:"active"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}
