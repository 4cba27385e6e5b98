// Package delta validates batched affiliation/role edits against a
// snapshot of room state and turns them into a commit plan. Validation
// is all-or-nothing: one bad item rejects the whole batch and the plan
// is discarded, so partial application is never observable.
package delta

import (
	"strings"

	"room-warden/authz"
	"room-warden/domain"
	"room-warden/domain/event"
	"room-warden/errors"
)

// Eviction is one occupant removal scheduled by the plan. The presence
// broadcast for it carries Status plus the target's new affiliation.
type Eviction struct {
	Occupant    domain.Occupant
	Status      int
	Affiliation domain.Affiliation
	Reason      string
}

// Broadcast is one non-evicting presence update scheduled by the plan.
type Broadcast struct {
	Occupant    domain.Occupant
	Affiliation domain.Affiliation
	Role        domain.Role
	Reason      string
}

// RoleSet records the in-memory role adjustment backing a Broadcast.
type RoleSet struct {
	Nickname string
	Role     domain.Role
}

// Plan is everything a validated batch commits: durable writes, durable
// deletions, in-memory role updates, and the broadcast set.
type Plan struct {
	Sets       []domain.AffiliationRecord
	Clears     []domain.BareID
	NickClears []domain.BareID
	RoleSets   []RoleSet
	Evictions  []Eviction
	Broadcasts []Broadcast
}

// Empty reports whether the batch was all no-ops.
func (p Plan) Empty() bool {
	return len(p.Sets) == 0 && len(p.Clears) == 0 && len(p.NickClears) == 0 &&
		len(p.RoleSets) == 0 && len(p.Evictions) == 0 && len(p.Broadcasts) == 0
}

type Applier struct {
	allowOwnerEdits bool
}

// NewApplier builds an applier. Owner-list editing is an optional
// capability of a deployment; when disabled, owner grants and
// revocations surface ErrUnsupportedFeature instead of ErrForbidden so
// callers can tell a capability gap from a true authorization failure.
func NewApplier(allowOwnerEdits bool) *Applier {
	return &Applier{allowOwnerEdits: allowOwnerEdits}
}

// ActionFor maps the affiliation a delta item writes onto the list it
// edits, which decides the rank the actor must hold.
func ActionFor(a domain.Affiliation) authz.Action {
	switch a {
	case domain.AffiliationOutcast:
		return authz.EditBanList
	case domain.AffiliationAdmin:
		return authz.EditAdminList
	case domain.AffiliationOwner:
		return authz.EditOwnerList
	default:
		return authz.EditMemberList
	}
}

// Plan validates a batch against the room snapshot and produces the
// commit plan. Items are checked against the snapshot overlaid with the
// batch's own earlier items, so a batch stays internally consistent
// (e.g. it cannot revoke every owner one item at a time).
func (a *Applier) Plan(room *domain.Room, actor domain.BareID, items []domain.DeltaItem) (Plan, error) {
	actorAff := room.Affiliation(actor)

	overlay := make(map[domain.BareID]domain.Affiliation)
	pendingOwners := room.OwnerCount()

	effective := func(id domain.BareID) domain.Affiliation {
		if aff, ok := overlay[id]; ok {
			return aff
		}
		return room.Affiliation(id)
	}

	var plan Plan
	evicted := make(map[string]bool) // by nickname

	for _, item := range items {
		if item.IsAffiliationEdit() {
			if err := a.planAffiliationItem(room, actor, actorAff, item, effective, overlay, &pendingOwners, &plan, evicted); err != nil {
				return Plan{}, err
			}
			continue
		}
		if item.Role != nil {
			if err := a.planRoleItem(room, actor, actorAff, item, effective, &plan); err != nil {
				return Plan{}, err
			}
			continue
		}
		return Plan{}, errors.ErrItemNotFound
	}
	return plan, nil
}

func (a *Applier) planAffiliationItem(
	room *domain.Room,
	actor domain.BareID,
	actorAff domain.Affiliation,
	item domain.DeltaItem,
	effective func(domain.BareID) domain.Affiliation,
	overlay map[domain.BareID]domain.Affiliation,
	pendingOwners *int,
	plan *Plan,
	evicted map[string]bool,
) error {
	target := resolveTarget(room, item.Target)
	if target == "" {
		return errors.ErrItemNotFound
	}

	next := *item.Affiliation
	cur := effective(target)

	if err := authz.Decide(actorAff, ActionFor(next)); err != nil {
		return err
	}
	if err := authz.CheckItem(authz.ItemRequest{
		Actor:             actor,
		ActorAffiliation:  actorAff,
		Target:            target,
		TargetAffiliation: cur,
		NewAffiliation:    &next,
		OwnerCount:        *pendingOwners,
	}); err != nil {
		return err
	}
	if !a.allowOwnerEdits && (next == domain.AffiliationOwner || cur == domain.AffiliationOwner) {
		return errors.ErrUnsupportedFeature
	}

	if next == cur {
		// No-op items are valid and contribute nothing to the plan.
		return nil
	}

	if cur == domain.AffiliationOwner {
		*pendingOwners--
	}
	if next == domain.AffiliationOwner {
		*pendingOwners++
	}
	overlay[target] = next

	if next == domain.AffiliationNone {
		plan.Clears = append(plan.Clears, target)
	} else {
		plan.Sets = append(plan.Sets, domain.AffiliationRecord{
			Identity:    target,
			Affiliation: next,
			Reason:      item.Reason,
		})
	}

	switch {
	case next == domain.AffiliationOutcast:
		// A ban removes the reservation and evicts every session.
		plan.NickClears = append(plan.NickClears, target)
		for _, o := range room.OccupantsOf(target) {
			if evicted[o.Nickname] {
				continue
			}
			evicted[o.Nickname] = true
			plan.Evictions = append(plan.Evictions, Eviction{
				Occupant:    *o,
				Status:      event.StatusBanned,
				Affiliation: next,
				Reason:      item.Reason,
			})
		}

	case next == domain.AffiliationNone && cur.Rank() >= domain.AffiliationMember.Rank() && room.Config.MembersOnly:
		// Dropping below member in a members-only room means losing the
		// seat and the reservation, even though the identity is not
		// banned. Admins and owners stripped to none go the same way.
		plan.NickClears = append(plan.NickClears, target)
		for _, o := range room.OccupantsOf(target) {
			if evicted[o.Nickname] {
				continue
			}
			evicted[o.Nickname] = true
			plan.Evictions = append(plan.Evictions, Eviction{
				Occupant:    *o,
				Status:      event.StatusRemoved,
				Affiliation: next,
				Reason:      item.Reason,
			})
		}

	default:
		for _, o := range room.OccupantsOf(target) {
			if evicted[o.Nickname] {
				continue
			}
			role := o.Role
			if floor := domain.RoleFloor(next); role < floor {
				role = floor
				plan.RoleSets = append(plan.RoleSets, RoleSet{Nickname: o.Nickname, Role: role})
			}
			plan.Broadcasts = append(plan.Broadcasts, Broadcast{
				Occupant:    *o,
				Affiliation: next,
				Role:        role,
				Reason:      item.Reason,
			})
		}
	}
	return nil
}

func (a *Applier) planRoleItem(
	room *domain.Room,
	actor domain.BareID,
	actorAff domain.Affiliation,
	item domain.DeltaItem,
	effective func(domain.BareID) domain.Affiliation,
	plan *Plan,
) error {
	if err := authz.Decide(actorAff, authz.EditModeratorList); err != nil {
		return err
	}

	occupant, ok := room.OccupantByNickname(item.Target)
	if !ok {
		return errors.ErrItemNotFound
	}

	next := *item.Role
	if next == domain.RoleNone {
		return errors.ErrNotAllowed
	}

	if err := authz.CheckItem(authz.ItemRequest{
		Actor:             actor,
		ActorAffiliation:  actorAff,
		Target:            occupant.Identity,
		TargetAffiliation: effective(occupant.Identity),
		NewRole:           &next,
	}); err != nil {
		return err
	}

	if next == occupant.Role {
		return nil
	}

	plan.RoleSets = append(plan.RoleSets, RoleSet{Nickname: occupant.Nickname, Role: next})
	plan.Broadcasts = append(plan.Broadcasts, Broadcast{
		Occupant:    *occupant,
		Affiliation: effective(occupant.Identity),
		Role:        next,
		Reason:      item.Reason,
	})
	return nil
}

// resolveTarget normalizes an affiliation item's target to a bare
// identity. A target naming a joined occupant's nickname resolves to
// that occupant's identity; anything else is treated as an address and
// stripped of any session qualifier.
func resolveTarget(room *domain.Room, raw string) domain.BareID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.ContainsRune(raw, '@') {
		if o, ok := room.OccupantByNickname(raw); ok {
			return o.Identity
		}
	}
	return domain.ParseBareID(raw)
}
