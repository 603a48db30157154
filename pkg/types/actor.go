package types

import (
	"github.com/google/uuid"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// Actor is the verified identity performing a mutation, supplied by the
// upstream auth layer.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// IsZero reports whether the actor is missing an identity.
func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil
}
