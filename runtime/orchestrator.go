// Package runtime coordinates rooms: it owns the per-room serializers,
// the occupant directory, and the event fanout pipeline. Domain rules
// live elsewhere; this package only sequences them.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"room-warden/contract"
	"room-warden/delta"
	"room-warden/domain"
	"room-warden/domain/event"
	"room-warden/errors"
	"room-warden/future"
	"room-warden/observability"
	"room-warden/repositories"
	"room-warden/runtime/workers"
)

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	directory      contract.IDirectory
	repo           repositories.IRoomRepository
	applier        *delta.Applier
	monitor        *observability.Monitor
	archive        contract.EventSink
	events         chan event.DomainEvent
	rooms          map[domain.RoomID]*RoomWorker
	bufferSize     int
	requestTimeout time.Duration
	sinkTimeout    time.Duration
	metricInterval time.Duration
	ctx            context.Context
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	directory contract.IDirectory,
	repo repositories.IRoomRepository,
	applier *delta.Applier,
	monitor *observability.Monitor,
	archive contract.EventSink,
	bufferSize int,
	requestTimeout, sinkTimeout, metricInterval time.Duration,
) *Orchestrator {
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		directory:      directory,
		repo:           repo,
		applier:        applier,
		monitor:        monitor,
		archive:        archive,
		events:         make(chan event.DomainEvent, bufferSize),
		rooms:          make(map[domain.RoomID]*RoomWorker),
		bufferSize:     bufferSize,
		requestTimeout: requestTimeout,
		sinkTimeout:    sinkTimeout,
		metricInterval: metricInterval,
	}
}

// Start registers the pipeline workers and launches supervision. Room
// workers attach later, as rooms come alive.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.ctx = ctx
	o.supervisor.Add(workers.NewEventFanout(o.log, o.directory, o.events, o.monitor, o.archive, o.sinkTimeout))
	o.supervisor.Add(workers.NewTelemetryWorker(o.log, o.monitor, o.metricInterval))
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

// Stop cancels supervision; in-flight commands resolve with a canceled
// context, committed state stays committed.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// Join admits a session into a room. Joining an address nobody has used
// yet creates the room with the joiner as its sole owner; the self
// presence then carries the room-created code.
func (o *Orchestrator) Join(ctx context.Context, roomID domain.RoomID, identity domain.BareID, session uuid.UUID, nickname string, sink contract.EventSink) (domain.Occupant, error) {
	worker, created, err := o.workerFor(roomID, identity)
	if err != nil {
		return domain.Occupant{}, err
	}
	cmd := &joinCmd{
		identity: identity,
		session:  session,
		nickname: nickname,
		sink:     sink,
		created:  created,
		reply:    future.New[domain.Occupant](),
	}
	return dispatch(ctx, o, worker, cmd, cmd.reply)
}

func (o *Orchestrator) Leave(ctx context.Context, roomID domain.RoomID, session uuid.UUID) error {
	worker, err := o.residentWorker(roomID)
	if err != nil {
		return err
	}
	cmd := &leaveCmd{session: session, reply: future.New[struct{}]()}
	_, err = dispatch(ctx, o, worker, cmd, cmd.reply)
	return err
}

// Disconnect drops a session's sink. Transport calls Leave per joined
// room first; this is the final cleanup when the connection dies.
func (o *Orchestrator) Disconnect(session uuid.UUID) {
	o.directory.Disconnect(session)
}

// ApplyDelta submits a batched affiliation/role edit. The returned
// error, if any, is one of the sentinel taxonomy; on success every
// triggered broadcast has been enqueued before this returns.
func (o *Orchestrator) ApplyDelta(ctx context.Context, roomID domain.RoomID, actor domain.BareID, items []domain.DeltaItem) error {
	worker, err := o.residentWorker(roomID)
	if err != nil {
		return err
	}
	cmd := &applyDeltaCmd{actor: actor, items: items, reply: future.New[struct{}]()}
	_, err = dispatch(ctx, o, worker, cmd, cmd.reply)
	return err
}

func (o *Orchestrator) AffiliationList(ctx context.Context, roomID domain.RoomID, actor domain.BareID, filter domain.Affiliation) ([]domain.AffiliationRecord, error) {
	worker, err := o.residentWorker(roomID)
	if err != nil {
		return nil, err
	}
	cmd := &affiliationListCmd{actor: actor, filter: filter, reply: future.New[[]domain.AffiliationRecord]()}
	return dispatch(ctx, o, worker, cmd, cmd.reply)
}

func (o *Orchestrator) RoleList(ctx context.Context, roomID domain.RoomID, actor domain.BareID, filter domain.Role) ([]domain.Occupant, error) {
	worker, err := o.residentWorker(roomID)
	if err != nil {
		return nil, err
	}
	cmd := &roleListCmd{actor: actor, filter: filter, reply: future.New[[]domain.Occupant]()}
	return dispatch(ctx, o, worker, cmd, cmd.reply)
}

func (o *Orchestrator) RegisterNickname(ctx context.Context, roomID domain.RoomID, identity domain.BareID, nickname string) error {
	worker, err := o.residentWorker(roomID)
	if err != nil {
		return err
	}
	cmd := &registerNicknameCmd{identity: identity, nickname: nickname, reply: future.New[struct{}]()}
	_, err = dispatch(ctx, o, worker, cmd, cmd.reply)
	return err
}

func (o *Orchestrator) Configure(ctx context.Context, roomID domain.RoomID, actor domain.BareID, cfg domain.RoomConfig) error {
	worker, err := o.residentWorker(roomID)
	if err != nil {
		return err
	}
	cmd := &configureCmd{actor: actor, cfg: cfg, reply: future.New[struct{}]()}
	_, err = dispatch(ctx, o, worker, cmd, cmd.reply)
	return err
}

func (o *Orchestrator) Destroy(ctx context.Context, roomID domain.RoomID, actor domain.BareID, reason string) error {
	worker, err := o.residentWorker(roomID)
	if err != nil {
		return err
	}
	cmd := &destroyCmd{actor: actor, reason: reason, reply: future.New[struct{}]()}
	if _, err = dispatch(ctx, o, worker, cmd, cmd.reply); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.rooms, roomID)
	o.mu.Unlock()
	o.monitor.RoomClosed()
	return nil
}

// workerFor returns the room's worker, reviving a persistent room from
// storage or creating a brand-new room owned by the creator.
func (o *Orchestrator) workerFor(roomID domain.RoomID, creator domain.BareID) (*RoomWorker, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if worker, ok := o.rooms[roomID]; ok {
		return worker, false, nil
	}

	worker, err := o.reviveWorker(roomID)
	switch {
	case err == nil:
		return worker, false, nil

	case err == errors.ErrItemNotFound:
		room := domain.NewRoom(roomID, domain.RoomConfig{})
		ownerRec := domain.AffiliationRecord{Identity: creator, Affiliation: domain.AffiliationOwner}
		if err := o.repo.SaveConfig(roomID, room.Config); err != nil {
			return nil, false, err
		}
		if err := o.repo.ApplyDelta(roomID, []domain.AffiliationRecord{ownerRec}, nil, nil); err != nil {
			return nil, false, err
		}
		room.SetAffiliation(ownerRec)
		worker := o.startWorker(room)
		o.log.Info("Room created", "room", roomID, "owner", creator)
		return worker, true, nil

	default:
		return nil, false, err
	}
}

func (o *Orchestrator) startWorker(room *domain.Room) *RoomWorker {
	worker := NewRoomWorker(room, o.bufferSize, o.events, o.repo, o.applier, o.directory, o.monitor, o.log)
	o.rooms[room.ID] = worker
	o.supervisor.Start(o.ctx, worker)
	o.monitor.RoomOpened()
	return worker
}

// reviveWorker loads a stored room back into a live worker. Stale state
// of a non-persistent room is discarded instead, so callers see the
// address as never created. Callers hold o.mu.
func (o *Orchestrator) reviveWorker(roomID domain.RoomID) (*RoomWorker, error) {
	if o.ctx == nil {
		return nil, fmt.Errorf("orchestrator not started")
	}
	cfg, err := o.repo.LoadConfig(roomID)
	if err != nil {
		return nil, err
	}
	if !cfg.Persistent {
		if err := o.repo.DeleteRoom(roomID); err != nil {
			return nil, err
		}
		return nil, errors.ErrItemNotFound
	}

	room := domain.NewRoom(roomID, cfg)
	records, err := o.repo.Affiliations(roomID)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		room.SetAffiliation(rec)
	}
	return o.startWorker(room), nil
}

// residentWorker resolves the worker for an operation that does not
// create rooms: unknown and destroyed rooms surface ErrItemNotFound,
// stored persistent rooms revive.
func (o *Orchestrator) residentWorker(roomID domain.RoomID) (*RoomWorker, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if worker, ok := o.rooms[roomID]; ok {
		return worker, nil
	}
	return o.reviveWorker(roomID)
}

// dispatch submits a command to a room worker and waits for its reply
// within the orchestrator's bounded request timeout. A timed-out wait
// has zero effect on stored state: either the command never reached the
// serializer, or it commits after the actor stopped listening.
func dispatch[T any](ctx context.Context, o *Orchestrator, worker *RoomWorker, cmd roomCommand, reply *future.Future[T]) (T, error) {
	var zero T
	timer := time.NewTimer(o.requestTimeout)
	defer timer.Stop()

	select {
	case worker.commands <- cmd:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, errors.ErrRequestTimeout
	}
	return reply.Wait(ctx, o.requestTimeout)
}
