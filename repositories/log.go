package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"room-warden/domain"
)

// LogEntry is one archived presence broadcast of a publicly logged
// room. Keys sort by timestamp, so a prefix scan replays the log in
// order.
type LogEntry struct {
	ID          string    `json:"id"`
	Nickname    string    `json:"nickname"`
	Occupant    string    `json:"occupant"`
	Affiliation string    `json:"affiliation"`
	Role        string    `json:"role"`
	Available   bool      `json:"available"`
	Statuses    []int     `json:"statuses,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

func logPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("log:%s:", room))
}

func logKey(room domain.RoomID, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("log:%s:%020d:%s", room, at.UnixNano(), id))
}

func (r *RoomRepository) AppendLogEntry(room domain.RoomID, entry LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(logKey(room, entry.At, entry.ID), data)
	})
}

// RoomLog replays a room's archived entries in timestamp order.
func (r *RoomRepository) RoomLog(room domain.RoomID) ([]LogEntry, error) {
	var entries []LogEntry
	prefix := logPrefix(room)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry LogEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
