package httpapi

import (
	"context"

	"room-warden/domain/event"
)

type Sink struct {
	ConnectedUserEvent chan event.DomainEvent
}

func NewStreamSink(bufferSize int) *Sink {
	return &Sink{ConnectedUserEvent: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by fanout. It redirects the event through the
// channel owned by the connection; the stream handler takes it from
// there. A full channel drops the event rather than stalling fanout.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.ConnectedUserEvent <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
