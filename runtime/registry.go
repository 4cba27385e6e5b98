package runtime

import (
	"sync"

	"github.com/google/uuid"

	"room-warden/contract"
	"room-warden/domain"
)

type set map[uuid.UUID]struct{}

// Registry is the ephemeral occupant directory: which sessions can be
// reached (sessions) and which sessions are joined to which room
// (roomSessions). Leaving a room does not drop the session's sink; a
// disconnect does. None of this state survives a restart.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]contract.EventSink
	roomSessions map[domain.RoomID]set
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[uuid.UUID]contract.EventSink),
		roomSessions: make(map[domain.RoomID]set),
	}
}

// Subscribe registers a session's sink and adds it to a room. The sink
// is managed in a single place even when the session sits in several
// rooms.
func (r *Registry) Subscribe(session uuid.UUID, roomID domain.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session] = sink

	if _, ok := r.roomSessions[roomID]; !ok {
		r.roomSessions[roomID] = make(set)
	}
	r.roomSessions[roomID][session] = struct{}{}
}

// Leave removes the session from a room but keeps its sink registered,
// so an eviction notice enqueued just before the removal still reaches
// the session.
func (r *Registry) Leave(session uuid.UUID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.roomSessions[roomID]; ok {
		delete(members, session)
		if len(members) == 0 {
			delete(r.roomSessions, roomID)
		}
	}
}

// Disconnect drops the session entirely.
func (r *Registry) Disconnect(session uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, session)
	for roomID, members := range r.roomSessions {
		delete(members, session)
		if len(members) == 0 {
			delete(r.roomSessions, roomID)
		}
	}
}

func (r *Registry) SinkFor(session uuid.UUID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[session]
	return sink, ok
}

func (r *Registry) SessionsForRoom(roomID domain.RoomID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomSessions[roomID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(members))
	for session := range members {
		out = append(out, session)
	}
	return out
}
