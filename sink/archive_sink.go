// Package sink holds standalone event consumers that sit outside the
// per-session delivery path.
package sink

import (
	"context"
	"log/slog"

	"room-warden/domain/event"
	"room-warden/repositories"
)

// ArchiveSink persists presence broadcasts of publicly logged rooms.
// Fanout hands it every committed event exactly once; everything not
// marked for logging passes through untouched.
type ArchiveSink struct {
	repository repositories.IRoomRepository
	log        *slog.Logger
}

func NewArchiveSink(repository repositories.IRoomRepository, log *slog.Logger) ArchiveSink {
	return ArchiveSink{repository: repository, log: log}
}

func (d ArchiveSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.PresenceUpdate:
		if !evt.Logged {
			return nil
		}
		return d.repository.AppendLogEntry(evt.Room, toLogEntry(evt))
	default:
		return nil
	}
}

func toLogEntry(evt event.PresenceUpdate) repositories.LogEntry {
	return repositories.LogEntry{
		ID:          evt.ID.String(),
		Nickname:    evt.Nickname,
		Occupant:    evt.Occupant.String(),
		Affiliation: evt.Affiliation.String(),
		Role:        evt.Role.String(),
		Available:   evt.Available,
		Statuses:    evt.Statuses,
		Reason:      evt.Reason,
		At:          evt.At,
	}
}
