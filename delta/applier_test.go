package delta

import (
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"room-warden/domain"
	"room-warden/domain/event"
	"room-warden/errors"
)

func testRoom(cfg domain.RoomConfig) *domain.Room {
	room := domain.NewRoom("coven@chat", cfg)
	room.SetAffiliation(domain.AffiliationRecord{Identity: "owner@chat", Affiliation: domain.AffiliationOwner})
	room.SetAffiliation(domain.AffiliationRecord{Identity: "admin@chat", Affiliation: domain.AffiliationAdmin})
	room.SetAffiliation(domain.AffiliationRecord{Identity: "member@chat", Affiliation: domain.AffiliationMember})
	return room
}

func join(t *testing.T, room *domain.Room, id domain.BareID, nickname string) *domain.Occupant {
	t.Helper()
	o := &domain.Occupant{
		Room:     room.ID,
		Nickname: nickname,
		Identity: id,
		Session:  uuid.New(),
		Role:     domain.DefaultRole(room.Affiliation(id)),
	}
	require.NoError(t, room.AddOccupant(o))
	return o
}

func ban(target string, reason string) domain.DeltaItem {
	return domain.DeltaItem{
		Target:      target,
		Affiliation: lo.ToPtr(domain.AffiliationOutcast),
		Reason:      reason,
	}
}

func TestPlan_BanNotJoinedTarget(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{
		ban("Intruder@chat/laptop", "unwanted"),
	})
	req.NoError(err)

	req.Len(plan.Sets, 1)
	// Session-qualified input is normalized to the bare identity.
	req.Equal(domain.BareID("intruder@chat"), plan.Sets[0].Identity)
	req.Equal(domain.AffiliationOutcast, plan.Sets[0].Affiliation)
	req.Equal("unwanted", plan.Sets[0].Reason)
	req.Empty(plan.Evictions)
	req.Empty(plan.Broadcasts)
	req.Contains(plan.NickClears, domain.BareID("intruder@chat"))
}

func TestPlan_BanJoinedTargetSchedulesEviction(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	target := join(t, room, "member@chat", "thirdwitch")
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{ban("member@chat", "spam")})
	req.NoError(err)

	req.Len(plan.Evictions, 1)
	req.Equal(target.Session, plan.Evictions[0].Occupant.Session)
	req.Equal(event.StatusBanned, plan.Evictions[0].Status)
	req.Equal("spam", plan.Evictions[0].Reason)
	req.Empty(plan.Broadcasts)
}

func TestPlan_BanAuthorization(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	applier := NewApplier(true)

	// Admins cannot ban their superiors.
	_, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{ban("owner@chat", "")})
	req.ErrorIs(err, errors.ErrNotAllowed)

	// Self-ban is a conflict.
	_, err = applier.Plan(room, "admin@chat", []domain.DeltaItem{ban("admin@chat", "")})
	req.ErrorIs(err, errors.ErrConflict)

	// Unaffiliated actors get forbidden.
	_, err = applier.Plan(room, "nobody@chat", []domain.DeltaItem{ban("member@chat", "")})
	req.ErrorIs(err, errors.ErrForbidden)
}

func TestPlan_BatchAllOrNothing(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	applier := NewApplier(true)

	// One valid item plus one rule-violating item rejects the batch.
	_, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{
		ban("stranger@chat", ""),
		ban("owner@chat", ""),
	})
	req.ErrorIs(err, errors.ErrNotAllowed)
}

func TestPlan_NoOpItemContributesNothing(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "owner@chat", []domain.DeltaItem{
		{Target: "member@chat", Affiliation: lo.ToPtr(domain.AffiliationMember)},
	})
	req.NoError(err)
	req.True(plan.Empty())
}

func TestPlan_SoleOwnerRevocationConflicts(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	applier := NewApplier(true)

	_, err := applier.Plan(room, "owner@chat", []domain.DeltaItem{
		{Target: "owner@chat", Affiliation: lo.ToPtr(domain.AffiliationAdmin)},
	})
	req.ErrorIs(err, errors.ErrConflict)
}

func TestPlan_BatchCannotRevokeAllOwners(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	room.SetAffiliation(domain.AffiliationRecord{Identity: "second@chat", Affiliation: domain.AffiliationOwner})
	applier := NewApplier(true)

	// Two owners exist; revoking both in one batch must still trip the
	// last-owner rule on the second item.
	_, err := applier.Plan(room, "owner@chat", []domain.DeltaItem{
		{Target: "second@chat", Affiliation: lo.ToPtr(domain.AffiliationAdmin)},
		{Target: "owner@chat", Affiliation: lo.ToPtr(domain.AffiliationAdmin)},
	})
	req.ErrorIs(err, errors.ErrConflict)
}

func TestPlan_OwnerEditsUnsupported(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	applier := NewApplier(false)

	_, err := applier.Plan(room, "owner@chat", []domain.DeltaItem{
		{Target: "member@chat", Affiliation: lo.ToPtr(domain.AffiliationOwner)},
	})
	req.ErrorIs(err, errors.ErrUnsupportedFeature)
	req.NotErrorIs(err, errors.ErrForbidden)
}

func TestPlan_MembershipRevokeInMembersOnlyRoomEvicts(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{MembersOnly: true})
	target := join(t, room, "member@chat", "thirdwitch")
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{
		{Target: "member@chat", Affiliation: lo.ToPtr(domain.AffiliationNone)},
	})
	req.NoError(err)

	req.Len(plan.Evictions, 1)
	req.Equal(target.Session, plan.Evictions[0].Occupant.Session)
	req.Equal(event.StatusRemoved, plan.Evictions[0].Status)
	req.Contains(plan.Clears, domain.BareID("member@chat"))
	req.Contains(plan.NickClears, domain.BareID("member@chat"))
}

func TestPlan_AdminDroppedToNoneInMembersOnlyRoomEvicts(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{MembersOnly: true})
	target := join(t, room, "admin@chat", "secondwitch")
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "owner@chat", []domain.DeltaItem{
		{Target: "admin@chat", Affiliation: lo.ToPtr(domain.AffiliationNone)},
	})
	req.NoError(err)

	req.Len(plan.Evictions, 1)
	req.Equal(target.Session, plan.Evictions[0].Occupant.Session)
	req.Equal(event.StatusRemoved, plan.Evictions[0].Status)
	req.Contains(plan.Clears, domain.BareID("admin@chat"))
	req.Contains(plan.NickClears, domain.BareID("admin@chat"))
	req.Empty(plan.Broadcasts)
}

func TestPlan_MembershipRevokeInOpenRoomOnlyBroadcasts(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	join(t, room, "member@chat", "thirdwitch")
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{
		{Target: "member@chat", Affiliation: lo.ToPtr(domain.AffiliationNone)},
	})
	req.NoError(err)

	req.Empty(plan.Evictions)
	req.Len(plan.Broadcasts, 1)
	req.Equal(domain.AffiliationNone, plan.Broadcasts[0].Affiliation)
}

func TestPlan_GrantRaisesRoleToFloor(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	occ := join(t, room, "member@chat", "thirdwitch")
	req.Equal(domain.RoleParticipant, occ.Role)
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "owner@chat", []domain.DeltaItem{
		{Target: "member@chat", Affiliation: lo.ToPtr(domain.AffiliationAdmin)},
	})
	req.NoError(err)

	req.Len(plan.Broadcasts, 1)
	req.Equal(domain.AffiliationAdmin, plan.Broadcasts[0].Affiliation)
	req.Equal(domain.RoleModerator, plan.Broadcasts[0].Role)
	req.Equal([]RoleSet{{Nickname: "thirdwitch", Role: domain.RoleModerator}}, plan.RoleSets)
}

func TestPlan_RoleEditByNickname(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	join(t, room, "member@chat", "thirdwitch")
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{
		{Target: "thirdwitch", Role: lo.ToPtr(domain.RoleModerator)},
	})
	req.NoError(err)
	req.Equal([]RoleSet{{Nickname: "thirdwitch", Role: domain.RoleModerator}}, plan.RoleSets)
	req.Len(plan.Broadcasts, 1)

	// Unknown nicknames cannot be edited.
	_, err = applier.Plan(room, "admin@chat", []domain.DeltaItem{
		{Target: "ghost", Role: lo.ToPtr(domain.RoleVisitor)},
	})
	req.ErrorIs(err, errors.ErrItemNotFound)
}

func TestPlan_CannotStripModeratorFromAdmin(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	join(t, room, "admin@chat", "secondwitch")
	applier := NewApplier(true)

	_, err := applier.Plan(room, "owner@chat", []domain.DeltaItem{
		{Target: "secondwitch", Role: lo.ToPtr(domain.RoleParticipant)},
	})
	req.ErrorIs(err, errors.ErrNotAllowed)
}

func TestPlan_UnmentionedIdentitiesUntouched(t *testing.T) {
	req := require.New(t)
	room := testRoom(domain.RoomConfig{})
	room.SetAffiliation(domain.AffiliationRecord{Identity: "a@chat", Affiliation: domain.AffiliationOutcast})
	room.SetAffiliation(domain.AffiliationRecord{Identity: "b@chat", Affiliation: domain.AffiliationOutcast})
	applier := NewApplier(true)

	plan, err := applier.Plan(room, "admin@chat", []domain.DeltaItem{
		{Target: "a@chat", Affiliation: lo.ToPtr(domain.AffiliationNone)},
		ban("c@chat", ""),
	})
	req.NoError(err)

	req.Equal([]domain.BareID{"a@chat"}, plan.Clears)
	req.Len(plan.Sets, 1)
	req.Equal(domain.BareID("c@chat"), plan.Sets[0].Identity)
	// b@chat is not part of the plan in any way.
	for _, rec := range plan.Sets {
		req.NotEqual(domain.BareID("b@chat"), rec.Identity)
	}
}
