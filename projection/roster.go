// Package projection builds local views from observed events. Handles
// ordering and deduplication. Does not emit events or interact with
// transports directly.
package projection

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"room-warden/domain"
	"room-warden/domain/event"
)

// RosterEntry is one visible occupant as the observer currently sees
// it.
type RosterEntry struct {
	Nickname    string
	Occupant    domain.BareID
	Affiliation domain.Affiliation
	Role        domain.Role
}

// Roster is a client-side occupant list for one room, maintained from
// the presence stream. Duplicate deliveries are dropped by event ID;
// unavailable presence removes the seat.
type Roster struct {
	mu        sync.Mutex
	room      domain.RoomID
	seen      map[uuid.UUID]struct{}
	entries   map[string]RosterEntry
	destroyed bool
}

func NewRoster(room domain.RoomID) *Roster {
	return &Roster{
		room:    room,
		seen:    make(map[uuid.UUID]struct{}),
		entries: make(map[string]RosterEntry),
	}
}

func (r *Roster) Consume(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch evt := e.(type) {
	case event.PresenceUpdate:
		if evt.Room != r.room {
			return nil
		}
		if _, dup := r.seen[evt.ID]; dup {
			return nil
		}
		r.seen[evt.ID] = struct{}{}

		if !evt.Available {
			delete(r.entries, evt.Nickname)
			return nil
		}
		r.entries[evt.Nickname] = RosterEntry{
			Nickname:    evt.Nickname,
			Occupant:    evt.Occupant,
			Affiliation: evt.Affiliation,
			Role:        evt.Role,
		}

	case event.RoomDestroyed:
		if evt.Room != r.room {
			return nil
		}
		r.destroyed = true
		r.entries = make(map[string]RosterEntry)
	}
	return nil
}

func (r *Roster) Entry(nickname string) (RosterEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[nickname]
	return entry, ok
}

func (r *Roster) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Roster) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}
