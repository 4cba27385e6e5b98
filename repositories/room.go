//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"room-warden/domain"
	"room-warden/errors"
)

// IRoomRepository is the durable state surface of a room: affiliation
// records (ban list included), reserved nicknames, the persistent room
// configuration, and the public presence log. Occupant state never
// touches this layer.
type IRoomRepository interface {
	SaveConfig(room domain.RoomID, cfg domain.RoomConfig) error
	LoadConfig(room domain.RoomID) (domain.RoomConfig, error)
	DeleteRoom(room domain.RoomID) error

	Affiliations(room domain.RoomID) ([]domain.AffiliationRecord, error)
	ApplyDelta(room domain.RoomID, sets []domain.AffiliationRecord, clears, nickClears []domain.BareID) error

	ReserveNickname(room domain.RoomID, id domain.BareID, nickname string) error
	ReservedNickname(room domain.RoomID, id domain.BareID) (string, error)
	NicknameHolder(room domain.RoomID, nickname string) (domain.BareID, bool, error)

	AppendLogEntry(room domain.RoomID, entry LogEntry) error
	RoomLog(room domain.RoomID) ([]LogEntry, error)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

// diskConfig is the stored form of a room's configuration.
type diskConfig struct {
	MembersOnly   bool `json:"members_only"`
	SemiAnonymous bool `json:"semi_anonymous"`
	PublicLogging bool `json:"public_logging"`
	Persistent    bool `json:"persistent"`
}

func configKey(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%s", room))
}

func (r *RoomRepository) SaveConfig(room domain.RoomID, cfg domain.RoomConfig) error {
	data, err := json.Marshal(diskConfig(cfg))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(configKey(room), data)
	})
}

func (r *RoomRepository) LoadConfig(room domain.RoomID) (domain.RoomConfig, error) {
	var disk diskConfig
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(configKey(room))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.RoomConfig{}, errors.ErrItemNotFound
	}
	if err != nil {
		return domain.RoomConfig{}, err
	}
	return domain.RoomConfig(disk), nil
}

// DeleteRoom drops every key family owned by the room. Used on explicit
// destroy; the room's affiliations and reservations die with it.
func (r *RoomRepository) DeleteRoom(room domain.RoomID) error {
	prefixes := [][]byte{
		affiliationPrefix(room),
		nicknamePrefix(room),
		logPrefix(room),
	}
	return r.db.Update(func(txn *badger.Txn) error {
		// The config key has no trailing delimiter, so a prefix scan over
		// it would also match rooms whose address extends this one.
		if err := txn.Delete(configKey(room)); err != nil {
			return err
		}
		for _, prefix := range prefixes {
			keys, err := collectKeys(txn, prefix)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func collectKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
