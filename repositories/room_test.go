package repositories

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"room-warden/domain"
	"room-warden/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRoomRepository_ConfigRoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())

	_, err := repo.LoadConfig("coven@chat")
	req.ErrorIs(err, errors.ErrItemNotFound)

	cfg := domain.RoomConfig{MembersOnly: true, PublicLogging: true, Persistent: true}
	req.NoError(repo.SaveConfig("coven@chat", cfg))

	loaded, err := repo.LoadConfig("coven@chat")
	req.NoError(err)
	req.Equal(cfg, loaded)
}

func TestRoomRepository_ApplyDelta_BatchIsAtomicAndKeyedBare(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("coven@chat")

	sets := []domain.AffiliationRecord{
		{Identity: "alice@chat", Affiliation: domain.AffiliationOwner},
		{Identity: "bob@chat", Affiliation: domain.AffiliationOutcast, Reason: "treason"},
	}
	req.NoError(repo.ApplyDelta(room, sets, nil, nil))

	records, err := repo.Affiliations(room)
	req.NoError(err)
	req.Len(records, 2)

	banned, err := repo.BanList(room)
	req.NoError(err)
	req.Len(banned, 1)
	req.Equal(domain.BareID("bob@chat"), banned[0].Identity)
	req.Equal("treason", banned[0].Reason)

	// Clearing an affiliation removes the record entirely.
	req.NoError(repo.ApplyDelta(room, nil, []domain.BareID{"bob@chat"}, nil))
	records, err = repo.Affiliations(room)
	req.NoError(err)
	req.Len(records, 1)
	req.Equal(domain.BareID("alice@chat"), records[0].Identity)
}

func TestRoomRepository_ApplyDelta_ClearsNicknameWithBan(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("coven@chat")

	req.NoError(repo.ReserveNickname(room, "bob@chat", "secondwitch"))

	set := []domain.AffiliationRecord{{Identity: "bob@chat", Affiliation: domain.AffiliationOutcast}}
	req.NoError(repo.ApplyDelta(room, set, nil, []domain.BareID{"bob@chat"}))

	_, err := repo.ReservedNickname(room, "bob@chat")
	req.ErrorIs(err, errors.ErrItemNotFound)
}

func TestRoomRepository_NicknameHolder(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("coven@chat")

	req.NoError(repo.ReserveNickname(room, "alice@chat", "firstwitch"))

	holder, found, err := repo.NicknameHolder(room, "firstwitch")
	req.NoError(err)
	req.True(found)
	req.Equal(domain.BareID("alice@chat"), holder)

	_, found, err = repo.NicknameHolder(room, "ghost")
	req.NoError(err)
	req.False(found)
}

func TestRoomRepository_DeleteRoom_DropsEverything(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("coven@chat")

	req.NoError(repo.SaveConfig(room, domain.RoomConfig{Persistent: true}))
	req.NoError(repo.ApplyDelta(room, []domain.AffiliationRecord{
		{Identity: "alice@chat", Affiliation: domain.AffiliationOwner},
	}, nil, nil))
	req.NoError(repo.ReserveNickname(room, "alice@chat", "firstwitch"))

	req.NoError(repo.DeleteRoom(room))

	_, err := repo.LoadConfig(room)
	req.ErrorIs(err, errors.ErrItemNotFound)
	records, err := repo.Affiliations(room)
	req.NoError(err)
	req.Empty(records)
	_, err = repo.ReservedNickname(room, "alice@chat")
	req.ErrorIs(err, errors.ErrItemNotFound)
}

func TestRoomRepository_DeleteRoom_LeavesExtendedAddressesAlone(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())

	cfg := domain.RoomConfig{Persistent: true}
	req.NoError(repo.SaveConfig("coven@chat.shakespeare.lit", cfg))
	req.NoError(repo.SaveConfig("coven@chat.shakespeare.lit2", cfg))

	req.NoError(repo.DeleteRoom("coven@chat.shakespeare.lit"))

	_, err := repo.LoadConfig("coven@chat.shakespeare.lit")
	req.ErrorIs(err, errors.ErrItemNotFound)
	loaded, err := repo.LoadConfig("coven@chat.shakespeare.lit2")
	req.NoError(err)
	req.Equal(cfg, loaded)
}
