// Package event defines the typed events a committed room mutation
// produces. One generic event-with-payload shape per kind, dispatched by
// the fanout worker; there are no per-event listener interfaces.
package event

import (
	"time"

	"github.com/google/uuid"

	"room-warden/domain"
)

// Numeric status codes carried on presence and room-wide broadcasts.
const (
	StatusSelfPresence    = 110
	StatusLoggingEnabled  = 170
	StatusLoggingDisabled = 171
	StatusNonAnonymous    = 172
	StatusSemiAnonymous   = 173
	StatusRoomCreated     = 201
	StatusBanned          = 301
	StatusRemoved         = 321
	StatusMembersOnly     = 322
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// PresenceUpdate is one presence broadcast addressed from
// <room>/<nickname>. Audience is the set of sessions that must receive
// it, snapshotted at commit time so an evicted occupant still gets its
// own unavailable presence. Sessions listed in SelfSessions additionally
// receive the self-presence marker (110).
type PresenceUpdate struct {
	ID           uuid.UUID
	Room         domain.RoomID
	Nickname     string
	Occupant     domain.BareID
	Affiliation  domain.Affiliation
	Role         domain.Role
	Available    bool
	Statuses     []int
	Reason       string
	Audience     []uuid.UUID
	SelfSessions []uuid.UUID
	// Logged marks a broadcast from a room whose discussion is publicly
	// logged; the archive sink persists these.
	Logged bool
	At     time.Time
}

func (e PresenceUpdate) RoomID() domain.RoomID { return e.Room }

// ConfigChanged is the room-wide status-only message emitted when a
// reconfiguration changes the privacy/security posture.
type ConfigChanged struct {
	ID       uuid.UUID
	Room     domain.RoomID
	Statuses []int
	Audience []uuid.UUID
	At       time.Time
}

func (e ConfigChanged) RoomID() domain.RoomID { return e.Room }

// RoomDestroyed is the destroy notice sent to every occupant. It carries
// no eviction status code; destruction is its own path.
type RoomDestroyed struct {
	ID       uuid.UUID
	Room     domain.RoomID
	Reason   string
	Audience []uuid.UUID
	At       time.Time
}

func (e RoomDestroyed) RoomID() domain.RoomID { return e.Room }
