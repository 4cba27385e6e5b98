package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"room-warden/errors"
)

func TestRoom_SetAffiliation_NoneMeansAbsence(t *testing.T) {
	req := require.New(t)
	room := NewRoom("coven@chat", RoomConfig{})

	room.SetAffiliation(AffiliationRecord{Identity: "alice@chat", Affiliation: AffiliationMember})
	req.Equal(AffiliationMember, room.Affiliation("alice@chat"))

	room.SetAffiliation(AffiliationRecord{Identity: "alice@chat", Affiliation: AffiliationNone})
	req.Equal(AffiliationNone, room.Affiliation("alice@chat"))
	_, ok := room.Record("alice@chat")
	req.False(ok)
}

func TestRoom_Records_FiltersAndSorts(t *testing.T) {
	req := require.New(t)
	room := NewRoom("coven@chat", RoomConfig{})

	room.SetAffiliation(AffiliationRecord{Identity: "carol@chat", Affiliation: AffiliationOutcast, Reason: "spam"})
	room.SetAffiliation(AffiliationRecord{Identity: "bob@chat", Affiliation: AffiliationOutcast})
	room.SetAffiliation(AffiliationRecord{Identity: "alice@chat", Affiliation: AffiliationMember})

	banned := room.Records(AffiliationOutcast)
	req.Len(banned, 2)
	req.Equal(BareID("bob@chat"), banned[0].Identity)
	req.Equal(BareID("carol@chat"), banned[1].Identity)
	req.Equal("spam", banned[1].Reason)
}

func TestRoom_AddOccupant_NicknameUnique(t *testing.T) {
	req := require.New(t)
	room := NewRoom("coven@chat", RoomConfig{})

	first := &Occupant{Room: room.ID, Nickname: "thirdwitch", Identity: "alice@chat", Session: uuid.New()}
	req.NoError(room.AddOccupant(first))

	dup := &Occupant{Room: room.ID, Nickname: "thirdwitch", Identity: "bob@chat", Session: uuid.New()}
	req.ErrorIs(room.AddOccupant(dup), errors.ErrNicknameTaken)

	room.RemoveOccupant("thirdwitch")
	req.NoError(room.AddOccupant(dup))
}

func TestRoom_OccupantsOf_FindsAllSessions(t *testing.T) {
	req := require.New(t)
	room := NewRoom("coven@chat", RoomConfig{})

	req.NoError(room.AddOccupant(&Occupant{Nickname: "witch", Identity: "alice@chat", Session: uuid.New()}))
	req.NoError(room.AddOccupant(&Occupant{Nickname: "crone", Identity: "alice@chat", Session: uuid.New()}))
	req.NoError(room.AddOccupant(&Occupant{Nickname: "bard", Identity: "bob@chat", Session: uuid.New()}))

	req.Len(room.OccupantsOf("alice@chat"), 2)
	req.Len(room.Sessions(), 3)
}
