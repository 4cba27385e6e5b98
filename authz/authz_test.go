package authz

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"room-warden/domain"
	"room-warden/errors"
)

func TestDecide_ListAccess(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.Affiliation
		action Action
		want   error
	}{
		{"admin views ban list", domain.AffiliationAdmin, ViewBanList, nil},
		{"owner edits ban list", domain.AffiliationOwner, EditBanList, nil},
		{"member views ban list", domain.AffiliationMember, ViewBanList, errors.ErrForbidden},
		{"unaffiliated edits ban list", domain.AffiliationNone, EditBanList, errors.ErrForbidden},
		{"outcast views member list", domain.AffiliationOutcast, ViewMemberList, errors.ErrForbidden},
		{"admin edits member list", domain.AffiliationAdmin, EditMemberList, nil},
		{"admin edits moderator list", domain.AffiliationAdmin, EditModeratorList, nil},
		{"member edits moderator list", domain.AffiliationMember, EditModeratorList, errors.ErrForbidden},
		{"admin views admin list", domain.AffiliationAdmin, ViewAdminList, errors.ErrForbidden},
		{"owner edits admin list", domain.AffiliationOwner, EditAdminList, nil},
		{"admin edits owner list", domain.AffiliationAdmin, EditOwnerList, errors.ErrForbidden},
		{"owner views owner list", domain.AffiliationOwner, ViewOwnerList, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decide(tt.actor, tt.action)
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckItem_Ban(t *testing.T) {
	tests := []struct {
		name      string
		actorAff  domain.Affiliation
		sameActor bool
		targetAff domain.Affiliation
		want      error
	}{
		{"admin bans unaffiliated", domain.AffiliationAdmin, false, domain.AffiliationNone, nil},
		{"admin bans member", domain.AffiliationAdmin, false, domain.AffiliationMember, nil},
		{"admin bans owner", domain.AffiliationAdmin, false, domain.AffiliationOwner, errors.ErrNotAllowed},
		{"admin bans admin", domain.AffiliationAdmin, false, domain.AffiliationAdmin, errors.ErrNotAllowed},
		{"admin bans self", domain.AffiliationAdmin, true, domain.AffiliationAdmin, errors.ErrConflict},
		{"owner bans admin", domain.AffiliationOwner, false, domain.AffiliationAdmin, nil},
		{"member bans anyone", domain.AffiliationMember, false, domain.AffiliationNone, errors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := domain.BareID("target@chat")
			if tt.sameActor {
				target = "actor@chat"
			}
			err := CheckItem(ItemRequest{
				Actor:             "actor@chat",
				ActorAffiliation:  tt.actorAff,
				Target:            target,
				TargetAffiliation: tt.targetAff,
				NewAffiliation:    lo.ToPtr(domain.AffiliationOutcast),
				OwnerCount:        2,
			})
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckItem_SoleOwnerProtection(t *testing.T) {
	req := require.New(t)

	// Even the owner themself cannot drop the last owner record.
	err := CheckItem(ItemRequest{
		Actor:             "owner@chat",
		ActorAffiliation:  domain.AffiliationOwner,
		Target:            "owner@chat",
		TargetAffiliation: domain.AffiliationOwner,
		NewAffiliation:    lo.ToPtr(domain.AffiliationAdmin),
		OwnerCount:        1,
	})
	req.ErrorIs(err, errors.ErrConflict)

	// With a second owner present the same revocation is fine.
	err = CheckItem(ItemRequest{
		Actor:             "owner@chat",
		ActorAffiliation:  domain.AffiliationOwner,
		Target:            "owner@chat",
		TargetAffiliation: domain.AffiliationOwner,
		NewAffiliation:    lo.ToPtr(domain.AffiliationAdmin),
		OwnerCount:        2,
	})
	req.NoError(err)
}

func TestCheckItem_AdminOwnerGrantsAreOwnerOnly(t *testing.T) {
	tests := []struct {
		name     string
		actorAff domain.Affiliation
		newAff   domain.Affiliation
		want     error
	}{
		{"owner grants admin", domain.AffiliationOwner, domain.AffiliationAdmin, nil},
		{"owner grants owner", domain.AffiliationOwner, domain.AffiliationOwner, nil},
		{"admin grants admin", domain.AffiliationAdmin, domain.AffiliationAdmin, errors.ErrForbidden},
		{"admin grants owner", domain.AffiliationAdmin, domain.AffiliationOwner, errors.ErrForbidden},
		{"owner grants member", domain.AffiliationOwner, domain.AffiliationMember, nil},
		{"admin grants member", domain.AffiliationAdmin, domain.AffiliationMember, nil},
		{"member grants member", domain.AffiliationMember, domain.AffiliationMember, errors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckItem(ItemRequest{
				Actor:             "actor@chat",
				ActorAffiliation:  tt.actorAff,
				Target:            "target@chat",
				TargetAffiliation: domain.AffiliationNone,
				NewAffiliation:    lo.ToPtr(tt.newAff),
				OwnerCount:        2,
			})
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckItem_RevokingAdminRequiresOwner(t *testing.T) {
	req := require.New(t)

	err := CheckItem(ItemRequest{
		Actor:             "actor@chat",
		ActorAffiliation:  domain.AffiliationAdmin,
		Target:            "target@chat",
		TargetAffiliation: domain.AffiliationAdmin,
		NewAffiliation:    lo.ToPtr(domain.AffiliationNone),
		OwnerCount:        2,
	})
	req.ErrorIs(err, errors.ErrForbidden)
}

func TestCheckItem_RoleEdits(t *testing.T) {
	tests := []struct {
		name      string
		targetAff domain.Affiliation
		newRole   domain.Role
		want      error
	}{
		{"participant promoted to moderator", domain.AffiliationMember, domain.RoleModerator, nil},
		{"member demoted to visitor", domain.AffiliationMember, domain.RoleVisitor, nil},
		{"admin stripped of moderator", domain.AffiliationAdmin, domain.RoleParticipant, errors.ErrNotAllowed},
		{"owner stripped of moderator", domain.AffiliationOwner, domain.RoleVisitor, errors.ErrNotAllowed},
		{"admin kept moderator", domain.AffiliationAdmin, domain.RoleModerator, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckItem(ItemRequest{
				Actor:             "actor@chat",
				ActorAffiliation:  domain.AffiliationAdmin,
				Target:            "target@chat",
				TargetAffiliation: tt.targetAff,
				NewRole:           lo.ToPtr(tt.newRole),
				OwnerCount:        2,
			})
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}
