package sink_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"room-warden/domain"
	"room-warden/domain/event"
	"room-warden/repositories"
	"room-warden/sink"
)

func TestArchiveSink_Consume(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	// Silencing logs for clean test output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repositories.NewRoomRepository(db, logger)
	s := sink.NewArchiveSink(repo, logger)
	ctx := context.Background()
	room := domain.RoomID("coven@chat.shakespeare.lit")

	presence := func(nickname string, logged bool, at time.Time) event.PresenceUpdate {
		return event.PresenceUpdate{
			ID:          uuid.New(),
			Room:        room,
			Nickname:    nickname,
			Occupant:    "crone1@shakespeare.lit",
			Affiliation: domain.AffiliationOwner,
			Role:        domain.RoleModerator,
			Available:   true,
			Logged:      logged,
			At:          at,
		}
	}

	t.Run("unlogged broadcasts pass through", func(t *testing.T) {
		req.NoError(s.Consume(ctx, presence("firstwitch", false, time.Now().UTC())))
		entries, err := repo.RoomLog(room)
		req.NoError(err)
		req.Empty(entries)
	})

	t.Run("logged broadcasts are archived in order", func(t *testing.T) {
		base := time.Now().UTC()
		req.NoError(s.Consume(ctx, presence("secondwitch", true, base.Add(time.Second))))
		req.NoError(s.Consume(ctx, presence("firstwitch", true, base)))

		entries, err := repo.RoomLog(room)
		req.NoError(err)
		req.Len(entries, 2)
		req.Equal("firstwitch", entries[0].Nickname)
		req.Equal("secondwitch", entries[1].Nickname)
		req.Equal("owner", entries[0].Affiliation)
	})

	t.Run("non-presence events are ignored", func(t *testing.T) {
		req.NoError(s.Consume(ctx, event.ConfigChanged{ID: uuid.New(), Room: room}))
	})
}
