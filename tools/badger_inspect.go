package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"

	"room-warden/domain"
	"room-warden/repositories"
)

// storedAffiliation mirrors the repository's on-disk JSON shape.
type storedAffiliation struct {
	Identity    string    `json:"identity"`
	Affiliation string    `json:"affiliation"`
	Reason      string    `json:"reason"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	room := flag.String("room", "", "Restrict the scan to one room address")
	bansOnly := flag.Bool("bans", false, "Show only outcast records")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *room != "" {
		if err := printRoom(db, domain.RoomID(*room), *bansOnly); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := printAll(db, *bansOnly); err != nil {
		log.Fatal(err)
	}
}

// printRoom answers a room-scoped query through the repository, the
// same read path the engine itself uses.
func printRoom(db *badger.DB, room domain.RoomID, bansOnly bool) error {
	repo := repositories.NewRoomRepository(db, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var records []domain.AffiliationRecord
	var err error
	if bansOnly {
		records, err = repo.BanList(room)
	} else {
		records, err = repo.Affiliations(room)
	}
	if err != nil {
		return err
	}

	table := newTable([]string{"Identity", "Affiliation", "Reason"})
	for _, rec := range records {
		table.Append([]string{
			rec.Identity.String(),
			colorize(rec.Affiliation.String()),
			rec.Reason,
		})
	}
	table.Render()
	return nil
}

// printAll scans the raw affil: keyspace across every room; only the
// stored form carries the update timestamp.
func printAll(db *badger.DB, bansOnly bool) error {
	table := newTable([]string{"Room", "Identity", "Affiliation", "Reason", "Updated"})

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("affil:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				var rec storedAffiliation
				if err := json.Unmarshal(v, &rec); err != nil {
					// One broken record should not kill the whole scan.
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}
				if bansOnly && rec.Affiliation != "outcast" {
					return nil
				}

				table.Append([]string{
					roomOfKey(key),
					rec.Identity,
					colorize(rec.Affiliation),
					rec.Reason,
					rec.UpdatedAt.Format("2006-01-02 15:04:05"),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	table.Render()
	return nil
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// roomOfKey extracts the room address from affil:<room>:<identity>.
func roomOfKey(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return "?"
	}
	return parts[1]
}

func colorize(affiliation string) string {
	switch affiliation {
	case "owner":
		return color.Magenta.Sprint(affiliation)
	case "admin":
		return color.Cyan.Sprint(affiliation)
	case "member":
		return color.Green.Sprint(affiliation)
	case "outcast":
		return color.Red.Sprint(affiliation)
	default:
		return affiliation
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Corruption can require a write open to truncate the value log
		// before a read-only open succeeds again.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
