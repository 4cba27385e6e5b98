package domain

import (
	"sort"

	"github.com/google/uuid"

	"room-warden/errors"
)

// RoomConfig holds the flags relevant to admission control. A room is
// non-anonymous when SemiAnonymous is false.
type RoomConfig struct {
	MembersOnly   bool
	SemiAnonymous bool
	PublicLogging bool
	Persistent    bool
}

// Room is the in-memory aggregate the per-room worker mutates. It owns
// its affiliation records and its occupant set; all access is
// single-goroutine by construction (one worker per room).
type Room struct {
	ID     RoomID
	Config RoomConfig

	affiliations map[BareID]AffiliationRecord
	occupants    map[string]*Occupant // keyed by nickname
}

func NewRoom(id RoomID, cfg RoomConfig) *Room {
	return &Room{
		ID:           id,
		Config:       cfg,
		affiliations: make(map[BareID]AffiliationRecord),
		occupants:    make(map[string]*Occupant),
	}
}

// Affiliation returns the stored affiliation for an identity, or
// AffiliationNone when no record exists.
func (r *Room) Affiliation(id BareID) Affiliation {
	if rec, ok := r.affiliations[id]; ok {
		return rec.Affiliation
	}
	return AffiliationNone
}

func (r *Room) Record(id BareID) (AffiliationRecord, bool) {
	rec, ok := r.affiliations[id]
	return rec, ok
}

// SetAffiliation upserts a record. Setting AffiliationNone deletes the
// record: none is represented by absence, never stored.
func (r *Room) SetAffiliation(rec AffiliationRecord) {
	if rec.Affiliation == AffiliationNone {
		delete(r.affiliations, rec.Identity)
		return
	}
	r.affiliations[rec.Identity] = rec
}

// Records lists the affiliation records matching the filter, sorted by
// identity for deterministic list responses.
func (r *Room) Records(filter Affiliation) []AffiliationRecord {
	var out []AffiliationRecord
	for _, rec := range r.affiliations {
		if rec.Affiliation == filter {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

func (r *Room) OwnerCount() int {
	n := 0
	for _, rec := range r.affiliations {
		if rec.Affiliation == AffiliationOwner {
			n++
		}
	}
	return n
}

// AddOccupant joins a session under a nickname. Nicknames are unique
// within a room.
func (r *Room) AddOccupant(o *Occupant) error {
	if _, taken := r.occupants[o.Nickname]; taken {
		return errors.ErrNicknameTaken
	}
	r.occupants[o.Nickname] = o
	return nil
}

func (r *Room) RemoveOccupant(nickname string) {
	delete(r.occupants, nickname)
}

func (r *Room) OccupantByNickname(nickname string) (*Occupant, bool) {
	o, ok := r.occupants[nickname]
	return o, ok
}

// OccupantsOf returns every joined session bound to an identity. An
// identity may be joined more than once under distinct nicknames.
func (r *Room) OccupantsOf(id BareID) []*Occupant {
	var out []*Occupant
	for _, o := range r.occupants {
		if o.Identity == id {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out
}

func (r *Room) Occupants() []*Occupant {
	out := make([]*Occupant, 0, len(r.occupants))
	for _, o := range r.occupants {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out
}

// Sessions snapshots the session IDs of everyone currently joined. The
// broadcaster captures this before any eviction removes an occupant, so
// the evicted session still receives its own unavailable presence.
func (r *Room) Sessions() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.occupants))
	for _, o := range r.Occupants() {
		out = append(out, o.Session)
	}
	return out
}
