// Package authz is the pure authorization engine. It decides, it never
// mutates: every function maps (actor, action, target) onto nil or one
// of the sentinel errors in room-warden/errors.
package authz

import (
	"room-warden/domain"
	"room-warden/errors"
)

// Action identifies which list a request wants to view or edit.
type Action int

const (
	ViewBanList Action = iota
	EditBanList
	ViewMemberList
	EditMemberList
	ViewModeratorList
	EditModeratorList
	ViewAdminList
	EditAdminList
	ViewOwnerList
	EditOwnerList
)

// requiredRank is the minimum affiliation that may perform each action.
var requiredRank = map[Action]domain.Affiliation{
	ViewBanList:       domain.AffiliationAdmin,
	EditBanList:       domain.AffiliationAdmin,
	ViewMemberList:    domain.AffiliationAdmin,
	EditMemberList:    domain.AffiliationAdmin,
	ViewModeratorList: domain.AffiliationAdmin,
	EditModeratorList: domain.AffiliationAdmin,
	ViewAdminList:     domain.AffiliationOwner,
	EditAdminList:     domain.AffiliationOwner,
	ViewOwnerList:     domain.AffiliationOwner,
	EditOwnerList:     domain.AffiliationOwner,
}

// Decide gates list-level access: the actor must hold at least the
// required affiliation for the action, otherwise ErrForbidden.
func Decide(actor domain.Affiliation, action Action) error {
	if actor.Rank() < requiredRank[action].Rank() {
		return errors.ErrForbidden
	}
	return nil
}

// ItemRequest is one delta item presented for a per-item decision, with
// the pre-mutation state the decision needs. OwnerCount reflects the
// batch so far, so a batch cannot sneak past the last-owner rule by
// splitting the revocation across items.
type ItemRequest struct {
	Actor             domain.BareID
	ActorAffiliation  domain.Affiliation
	Target            domain.BareID
	TargetAffiliation domain.Affiliation
	NewAffiliation    *domain.Affiliation
	NewRole           *domain.Role
	OwnerCount        int
}

// CheckItem applies the per-item rules on top of Decide's list-level
// gate. Rules, in precedence order:
//
//   - revoking owner from the sole remaining owner is a conflict,
//     regardless of who asks;
//   - granting or revoking admin/owner requires an owner actor;
//   - banning yourself is a conflict; banning a target of equal or
//     higher rank is not allowed;
//   - a role edit may not strip moderator from a target whose
//     affiliation ranks admin or above, and may never assign a role
//     below the target's role floor.
func CheckItem(req ItemRequest) error {
	if req.NewAffiliation != nil {
		return checkAffiliationItem(req)
	}
	if req.NewRole != nil {
		return checkRoleItem(req)
	}
	return nil
}

func checkAffiliationItem(req ItemRequest) error {
	next := *req.NewAffiliation

	if req.TargetAffiliation == domain.AffiliationOwner && next != domain.AffiliationOwner && req.OwnerCount <= 1 {
		return errors.ErrConflict
	}

	if next == domain.AffiliationOutcast {
		if req.ActorAffiliation.Rank() < domain.AffiliationAdmin.Rank() {
			return errors.ErrForbidden
		}
		if req.Target == req.Actor {
			return errors.ErrConflict
		}
		if req.TargetAffiliation.Rank() >= req.ActorAffiliation.Rank() {
			return errors.ErrNotAllowed
		}
		return nil
	}

	touchesUpperList := next >= domain.AffiliationAdmin ||
		req.TargetAffiliation >= domain.AffiliationAdmin
	if touchesUpperList && req.ActorAffiliation != domain.AffiliationOwner {
		return errors.ErrForbidden
	}

	if req.ActorAffiliation.Rank() < domain.AffiliationAdmin.Rank() {
		return errors.ErrForbidden
	}
	return nil
}

func checkRoleItem(req ItemRequest) error {
	next := *req.NewRole

	if req.TargetAffiliation.Rank() >= domain.AffiliationAdmin.Rank() && next < domain.RoleModerator {
		return errors.ErrNotAllowed
	}
	if next != domain.RoleNone && next < domain.RoleFloor(req.TargetAffiliation) {
		return errors.ErrNotAllowed
	}
	return nil
}
