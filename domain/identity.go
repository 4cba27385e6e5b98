// Package domain contains core concepts of the room admission system.
// It holds affiliations, roles, rooms, and occupants, with no runtime,
// storage, or transport logic.
package domain

import "strings"

// RoomID is the unique address of a room.
type RoomID string

func (r RoomID) String() string { return string(r) }

// BareID is a session-independent user address. Affiliations, bans, and
// nickname reservations are always keyed on the bare form; a
// session-qualified address ("user@host/session") must be normalized
// before it ever reaches a ban list.
type BareID string

// ParseBareID strips any session qualifier and lowercases the address.
func ParseBareID(addr string) BareID {
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		addr = addr[:i]
	}
	return BareID(strings.ToLower(strings.TrimSpace(addr)))
}

func (b BareID) String() string { return string(b) }

// IsBare reports whether an address carries no session qualifier.
func IsBare(addr string) bool {
	return !strings.ContainsRune(addr, '/')
}
