package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"room-warden/domain"
)

// diskAffiliation is the stored form of one affiliation record. The key
// carries the bare identity; the value duplicates it so a record is
// self-describing when inspected.
type diskAffiliation struct {
	Identity    string    `json:"identity"`
	Affiliation string    `json:"affiliation"`
	Reason      string    `json:"reason,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func affiliationPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("affil:%s:", room))
}

func affiliationKey(room domain.RoomID, id domain.BareID) []byte {
	return []byte(fmt.Sprintf("affil:%s:%s", room, id))
}

// Affiliations loads every affiliation record of a room.
func (r *RoomRepository) Affiliations(room domain.RoomID) ([]domain.AffiliationRecord, error) {
	var disks []diskAffiliation
	prefix := affiliationPrefix(room)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var disk diskAffiliation
				if err := json.Unmarshal(val, &disk); err != nil {
					return err
				}
				disks = append(disks, disk)
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

	records := make([]domain.AffiliationRecord, 0, len(disks))
	for _, disk := range disks {
		rec, err := toRecord(disk)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ApplyDelta commits a batch of affiliation writes, affiliation
// deletions, and nickname-reservation deletions in one transaction. The
// whole batch lands or none of it does; a rejected batch upstream never
// reaches this method.
func (r *RoomRepository) ApplyDelta(room domain.RoomID, sets []domain.AffiliationRecord, clears, nickClears []domain.BareID) error {
	now := time.Now().UTC()
	return r.db.Update(func(txn *badger.Txn) error {
		for _, rec := range sets {
			data, err := json.Marshal(fromRecord(rec, now))
			if err != nil {
				return err
			}
			if err := txn.Set(affiliationKey(room, rec.Identity), data); err != nil {
				return err
			}
		}
		for _, id := range clears {
			if err := txn.Delete(affiliationKey(room, id)); err != nil {
				return err
			}
		}
		for _, id := range nickClears {
			if err := txn.Delete(nicknameKey(room, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func fromRecord(rec domain.AffiliationRecord, at time.Time) diskAffiliation {
	return diskAffiliation{
		Identity:    rec.Identity.String(),
		Affiliation: rec.Affiliation.String(),
		Reason:      rec.Reason,
		UpdatedAt:   at,
	}
}

func toRecord(disk diskAffiliation) (domain.AffiliationRecord, error) {
	aff, err := domain.ParseAffiliation(disk.Affiliation)
	if err != nil {
		return domain.AffiliationRecord{}, err
	}
	return domain.AffiliationRecord{
		Identity:    domain.BareID(disk.Identity),
		Affiliation: aff,
		Reason:      disk.Reason,
	}, nil
}

// BanList is the Affiliations view filtered to outcast records.
func (r *RoomRepository) BanList(room domain.RoomID) ([]domain.AffiliationRecord, error) {
	records, err := r.Affiliations(room)
	if err != nil {
		return nil, err
	}
	return lo.Filter(records, func(rec domain.AffiliationRecord, _ int) bool {
		return rec.Affiliation == domain.AffiliationOutcast
	}), nil
}
