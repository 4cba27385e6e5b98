package domain

import (
	"time"

	"github.com/google/uuid"
)

// Occupant is one joined session in a room. Occupant records are
// ephemeral: leaving, eviction, or disconnect destroys the record, and a
// rejoin always creates a fresh one with a new join timestamp.
type Occupant struct {
	Room     RoomID
	Nickname string
	Identity BareID
	Session  uuid.UUID
	Role     Role
	JoinedAt time.Time
}
