package domain

import "fmt"

// Affiliation is the long-lived relationship between an identity and a
// room. The numeric values double as the comparison rank used by every
// authorization decision: owner(3) > admin(2) > member(1) > none(0) >
// outcast(-1).
type Affiliation int

const (
	AffiliationOutcast Affiliation = iota - 1
	AffiliationNone
	AffiliationMember
	AffiliationAdmin
	AffiliationOwner
)

// Rank exposes the comparison order explicitly.
func (a Affiliation) Rank() int { return int(a) }

func (a Affiliation) String() string {
	switch a {
	case AffiliationOutcast:
		return "outcast"
	case AffiliationNone:
		return "none"
	case AffiliationMember:
		return "member"
	case AffiliationAdmin:
		return "admin"
	case AffiliationOwner:
		return "owner"
	}
	return fmt.Sprintf("affiliation(%d)", int(a))
}

func ParseAffiliation(s string) (Affiliation, error) {
	switch s {
	case "outcast":
		return AffiliationOutcast, nil
	case "none":
		return AffiliationNone, nil
	case "member":
		return AffiliationMember, nil
	case "admin":
		return AffiliationAdmin, nil
	case "owner":
		return AffiliationOwner, nil
	}
	return AffiliationNone, fmt.Errorf("unknown affiliation %q", s)
}

func (a Affiliation) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Affiliation) UnmarshalText(data []byte) error {
	parsed, err := ParseAffiliation(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Role is the session-scoped privilege level of a joined occupant. It
// exists only while the occupant is joined.
type Role int

const (
	RoleNone Role = iota
	RoleVisitor
	RoleParticipant
	RoleModerator
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleVisitor:
		return "visitor"
	case RoleParticipant:
		return "participant"
	case RoleModerator:
		return "moderator"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "none":
		return RoleNone, nil
	case "visitor":
		return RoleVisitor, nil
	case "participant":
		return RoleParticipant, nil
	case "moderator":
		return RoleModerator, nil
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// DefaultRole is the role an occupant receives at join time, derived
// from their affiliation. It can be adjusted afterwards subject to
// RoleFloor.
func DefaultRole(a Affiliation) Role {
	if a >= AffiliationAdmin {
		return RoleModerator
	}
	return RoleParticipant
}

// RoleFloor is the lowest role an occupant with the given affiliation
// may hold. A role-only edit can never push an admin or owner below
// moderator.
func RoleFloor(a Affiliation) Role {
	if a >= AffiliationAdmin {
		return RoleModerator
	}
	return RoleVisitor
}

// AffiliationRecord is the durable (identity, affiliation) pair a room
// owns. Absence of a record means AffiliationNone. An outcast record is
// the ban-list entry; Reason carries the ban reason, if any.
type AffiliationRecord struct {
	Identity    BareID
	Affiliation Affiliation
	Reason      string
}
