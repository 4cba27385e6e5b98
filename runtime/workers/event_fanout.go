package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"room-warden/contract"
	"room-warden/domain/event"
	"room-warden/observability"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout delivers committed events to occupant sessions. Delivery
// is fire-and-forget relative to the requester: the room worker only
// guarantees the event is enqueued before the acknowledgement, never
// that delivery finished. Each recipient gets its own copy; sessions
// named in an event's SelfSessions receive the self-presence marker.
type EventFanout struct {
	log         *slog.Logger
	directory   contract.IDirectory
	events      chan event.DomainEvent
	monitor     *observability.Monitor
	archive     contract.EventSink
	sinkTimeout time.Duration
}

// NewEventFanout builds the fanout worker. A non-nil archive receives
// every committed event exactly once, on top of the per-session
// deliveries.
func NewEventFanout(
	log *slog.Logger,
	directory contract.IDirectory,
	events chan event.DomainEvent,
	monitor *observability.Monitor,
	archive contract.EventSink,
	sinkTimeout time.Duration,
) *EventFanout {
	return &EventFanout{
		log:         log,
		directory:   directory,
		events:      events,
		monitor:     monitor,
		archive:     archive,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout delivers one event to its audience. A slow sink only burns its
// own delivery timeout; it cannot stall the room worker, which has
// already moved on.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	if w.archive != nil {
		if err := w.archive.Consume(ctx, evt); err != nil {
			w.log.Warn("Archiving failed", "room", evt.RoomID(), "error", err)
		}
	}

	switch e := evt.(type) {
	case event.PresenceUpdate:
		selfSet := lo.SliceToMap(e.SelfSessions, func(s uuid.UUID) (uuid.UUID, struct{}) {
			return s, struct{}{}
		})
		for _, session := range e.Audience {
			copy := e
			if _, self := selfSet[session]; self {
				copy.Statuses = append(append([]int{}, e.Statuses...), event.StatusSelfPresence)
			}
			w.deliver(ctx, session, copy)
		}
	case event.ConfigChanged:
		for _, session := range e.Audience {
			w.deliver(ctx, session, e)
		}
	case event.RoomDestroyed:
		for _, session := range e.Audience {
			w.deliver(ctx, session, e)
		}
	default:
		w.log.Warn("Unknown event kind dropped", "room", evt.RoomID())
	}
}

func (w *EventFanout) deliver(ctx context.Context, session uuid.UUID, evt event.DomainEvent) {
	sink, ok := w.directory.SinkFor(session)
	if !ok {
		// Session disconnected between commit and delivery.
		return
	}

	deliveryCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()

	if err := sink.Consume(deliveryCtx, evt); err != nil {
		w.monitor.DeliveryFailed()
		w.log.Warn("Event delivery failed", "session", session, "room", evt.RoomID(), "error", err)
		return
	}
	w.monitor.EventDelivered()
}
