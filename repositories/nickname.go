package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"room-warden/domain"
	"room-warden/errors"
)

// diskNickname is the stored form of one nickname reservation.
type diskNickname struct {
	Identity     string    `json:"identity"`
	Nickname     string    `json:"nickname"`
	RegisteredAt time.Time `json:"registered_at"`
}

func nicknamePrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("nick:%s:", room))
}

func nicknameKey(room domain.RoomID, id domain.BareID) []byte {
	return []byte(fmt.Sprintf("nick:%s:%s", room, id))
}

// ReserveNickname stores a reservation, one per identity per room. The
// caller has already checked the nickname is free.
func (r *RoomRepository) ReserveNickname(room domain.RoomID, id domain.BareID, nickname string) error {
	data, err := json.Marshal(diskNickname{
		Identity:     id.String(),
		Nickname:     nickname,
		RegisteredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nicknameKey(room, id), data)
	})
}

// ReservedNickname returns the identity's reservation, or
// ErrItemNotFound.
func (r *RoomRepository) ReservedNickname(room domain.RoomID, id domain.BareID) (string, error) {
	var disk diskNickname
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nicknameKey(room, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", errors.ErrItemNotFound
	}
	if err != nil {
		return "", err
	}
	return disk.Nickname, nil
}

// NicknameHolder scans the room's reservations for a nickname and
// reports which identity holds it, if any. Reservation sets are small;
// a prefix scan is fine here.
func (r *RoomRepository) NicknameHolder(room domain.RoomID, nickname string) (domain.BareID, bool, error) {
	var holder domain.BareID
	found := false
	prefix := nicknamePrefix(room)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var disk diskNickname
				if err := json.Unmarshal(val, &disk); err != nil {
					return err
				}
				if disk.Nickname == nickname {
					holder = domain.BareID(disk.Identity)
					found = true
				}
				return nil
			})
			if err != nil {
				return err
			}
			if found {
				break
			}
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return holder, found, nil
}
