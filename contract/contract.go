//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"room-warden/domain"
	"room-warden/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself; the supervisor restarts it on panic.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision, avoiding manual naming in the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one delivery target for outbound events, typically a
// connected client session held by the transport layer.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IDirectory is the ephemeral occupant directory: which sessions are in
// which room, and how to reach each session. Leaving a room keeps the
// session's sink registered; only Disconnect drops it, so an evicted
// occupant can still receive its own eviction notice.
type IDirectory interface {
	Subscribe(session uuid.UUID, roomID domain.RoomID, sink EventSink)
	Leave(session uuid.UUID, roomID domain.RoomID)
	Disconnect(session uuid.UUID)
	SinkFor(session uuid.UUID) (EventSink, bool)
	SessionsForRoom(roomID domain.RoomID) []uuid.UUID
}
