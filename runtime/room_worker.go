package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"room-warden/authz"
	"room-warden/contract"
	"room-warden/delta"
	"room-warden/domain"
	"room-warden/domain/event"
	"room-warden/errors"
	"room-warden/future"
	"room-warden/observability"
	"room-warden/repositories"
)

var _ contract.Worker = (*RoomWorker)(nil)

// roomCommand is one serialized mutation or query against a room. Every
// command carries a typed future; resolveErr lets the worker reject a
// command without knowing its payload type.
type roomCommand interface {
	resolveErr(err error)
}

type joinCmd struct {
	identity domain.BareID
	session  uuid.UUID
	nickname string
	sink     contract.EventSink
	created  bool
	reply    *future.Future[domain.Occupant]
}

func (c *joinCmd) resolveErr(err error) { c.reply.Resolve(domain.Occupant{}, err) }

type leaveCmd struct {
	session uuid.UUID
	reply   *future.Future[struct{}]
}

func (c *leaveCmd) resolveErr(err error) { c.reply.Resolve(struct{}{}, err) }

type applyDeltaCmd struct {
	actor domain.BareID
	items []domain.DeltaItem
	reply *future.Future[struct{}]
}

func (c *applyDeltaCmd) resolveErr(err error) { c.reply.Resolve(struct{}{}, err) }

type affiliationListCmd struct {
	actor  domain.BareID
	filter domain.Affiliation
	reply  *future.Future[[]domain.AffiliationRecord]
}

func (c *affiliationListCmd) resolveErr(err error) { c.reply.Resolve(nil, err) }

type roleListCmd struct {
	actor  domain.BareID
	filter domain.Role
	reply  *future.Future[[]domain.Occupant]
}

func (c *roleListCmd) resolveErr(err error) { c.reply.Resolve(nil, err) }

type registerNicknameCmd struct {
	identity domain.BareID
	nickname string
	reply    *future.Future[struct{}]
}

func (c *registerNicknameCmd) resolveErr(err error) { c.reply.Resolve(struct{}{}, err) }

type configureCmd struct {
	actor domain.BareID
	cfg   domain.RoomConfig
	reply *future.Future[struct{}]
}

func (c *configureCmd) resolveErr(err error) { c.reply.Resolve(struct{}{}, err) }

type destroyCmd struct {
	actor  domain.BareID
	reason string
	reply  *future.Future[struct{}]
}

func (c *destroyCmd) resolveErr(err error) { c.reply.Resolve(struct{}{}, err) }

// RoomWorker is the serializer for one room: every mutating operation
// and every list query on the room runs here, one at a time, in
// submission order. Rooms are independent; their workers never share
// state.
type RoomWorker struct {
	room      *domain.Room
	commands  chan roomCommand
	events    chan event.DomainEvent
	repo      repositories.IRoomRepository
	applier   *delta.Applier
	directory contract.IDirectory
	monitor   *observability.Monitor
	log       *slog.Logger
	closed    bool
}

func NewRoomWorker(
	room *domain.Room,
	bufferSize int,
	events chan event.DomainEvent,
	repo repositories.IRoomRepository,
	applier *delta.Applier,
	directory contract.IDirectory,
	monitor *observability.Monitor,
	log *slog.Logger,
) *RoomWorker {
	return &RoomWorker{
		room:      room,
		commands:  make(chan roomCommand, bufferSize),
		events:    events,
		repo:      repo,
		applier:   applier,
		directory: directory,
		monitor:   monitor,
		log:       log.With("room", room.ID),
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker")
			return nil
		case cmd, ok := <-w.commands:
			if !ok {
				return nil
			}
			w.handle(ctx, cmd)
			if w.closed {
				return nil
			}
		}
	}
}

func (w *RoomWorker) handle(ctx context.Context, cmd roomCommand) {
	if w.closed {
		cmd.resolveErr(errors.ErrItemNotFound)
		return
	}

	switch c := cmd.(type) {
	case *joinCmd:
		w.handleJoin(ctx, c)
	case *leaveCmd:
		w.handleLeave(ctx, c)
	case *applyDeltaCmd:
		w.handleDelta(ctx, c)
	case *affiliationListCmd:
		w.handleAffiliationList(c)
	case *roleListCmd:
		w.handleRoleList(c)
	case *registerNicknameCmd:
		w.handleRegisterNickname(c)
	case *configureCmd:
		w.handleConfigure(ctx, c)
	case *destroyCmd:
		w.handleDestroy(ctx, c)
	default:
		cmd.resolveErr(errors.ErrItemNotFound)
	}
}

func (w *RoomWorker) handleJoin(ctx context.Context, c *joinCmd) {
	aff := w.room.Affiliation(c.identity)
	if aff == domain.AffiliationOutcast {
		c.reply.Resolve(domain.Occupant{}, errors.ErrForbidden)
		return
	}
	if w.room.Config.MembersOnly && aff.Rank() < domain.AffiliationMember.Rank() {
		c.reply.Resolve(domain.Occupant{}, errors.ErrForbidden)
		return
	}
	if holder, found, err := w.repo.NicknameHolder(w.room.ID, c.nickname); err != nil {
		c.reply.Resolve(domain.Occupant{}, err)
		return
	} else if found && holder != c.identity {
		c.reply.Resolve(domain.Occupant{}, errors.ErrConflict)
		return
	}

	occupant := &domain.Occupant{
		Room:     w.room.ID,
		Nickname: c.nickname,
		Identity: c.identity,
		Session:  c.session,
		Role:     domain.DefaultRole(aff),
		JoinedAt: time.Now().UTC(),
	}
	if err := w.room.AddOccupant(occupant); err != nil {
		c.reply.Resolve(domain.Occupant{}, err)
		return
	}
	w.directory.Subscribe(c.session, w.room.ID, c.sink)
	w.monitor.OccupantJoined()

	var statuses []int
	if c.created {
		statuses = []int{event.StatusRoomCreated}
	}
	w.emit(ctx, event.PresenceUpdate{
		ID:           uuid.New(),
		Room:         w.room.ID,
		Nickname:     occupant.Nickname,
		Occupant:     occupant.Identity,
		Affiliation:  aff,
		Role:         occupant.Role,
		Available:    true,
		Statuses:     statuses,
		Audience:     w.room.Sessions(),
		SelfSessions: []uuid.UUID{c.session},
		At:           occupant.JoinedAt,
	})
	c.reply.Resolve(*occupant, nil)
}

func (w *RoomWorker) handleLeave(ctx context.Context, c *leaveCmd) {
	occupant := w.occupantBySession(c.session)
	if occupant == nil {
		c.reply.Resolve(struct{}{}, errors.ErrItemNotFound)
		return
	}

	audience := w.room.Sessions()
	w.room.RemoveOccupant(occupant.Nickname)
	w.directory.Leave(c.session, w.room.ID)

	w.emit(ctx, event.PresenceUpdate{
		ID:           uuid.New(),
		Room:         w.room.ID,
		Nickname:     occupant.Nickname,
		Occupant:     occupant.Identity,
		Affiliation:  w.room.Affiliation(occupant.Identity),
		Role:         domain.RoleNone,
		Available:    false,
		Audience:     audience,
		SelfSessions: []uuid.UUID{c.session},
		At:           time.Now().UTC(),
	})
	c.reply.Resolve(struct{}{}, nil)
}

// handleDelta validates the batch, commits it durably, applies it in
// memory, and enqueues every broadcast before acknowledging the actor.
func (w *RoomWorker) handleDelta(ctx context.Context, c *applyDeltaCmd) {
	plan, err := w.applier.Plan(w.room, c.actor, c.items)
	if err != nil {
		w.monitor.DeltaRejected()
		c.reply.Resolve(struct{}{}, err)
		return
	}
	if plan.Empty() {
		c.reply.Resolve(struct{}{}, nil)
		return
	}

	if err := w.repo.ApplyDelta(w.room.ID, plan.Sets, plan.Clears, plan.NickClears); err != nil {
		w.monitor.DeltaRejected()
		c.reply.Resolve(struct{}{}, err)
		return
	}

	for _, rec := range plan.Sets {
		w.room.SetAffiliation(rec)
	}
	for _, id := range plan.Clears {
		w.room.SetAffiliation(domain.AffiliationRecord{Identity: id, Affiliation: domain.AffiliationNone})
	}
	for _, rs := range plan.RoleSets {
		if o, ok := w.room.OccupantByNickname(rs.Nickname); ok {
			o.Role = rs.Role
		}
	}

	// Evictions broadcast to the audience as it stood before any
	// removal, so the evicted occupant receives its own notice.
	audience := w.room.Sessions()
	for _, ev := range plan.Evictions {
		w.emit(ctx, event.PresenceUpdate{
			ID:           uuid.New(),
			Room:         w.room.ID,
			Nickname:     ev.Occupant.Nickname,
			Occupant:     ev.Occupant.Identity,
			Affiliation:  ev.Affiliation,
			Role:         domain.RoleNone,
			Available:    false,
			Statuses:     []int{ev.Status},
			Reason:       ev.Reason,
			Audience:     audience,
			SelfSessions: []uuid.UUID{ev.Occupant.Session},
			At:           time.Now().UTC(),
		})
		w.room.RemoveOccupant(ev.Occupant.Nickname)
		w.directory.Leave(ev.Occupant.Session, w.room.ID)
		w.monitor.Evicted()
	}

	remaining := w.room.Sessions()
	for _, b := range plan.Broadcasts {
		w.emit(ctx, event.PresenceUpdate{
			ID:           uuid.New(),
			Room:         w.room.ID,
			Nickname:     b.Occupant.Nickname,
			Occupant:     b.Occupant.Identity,
			Affiliation:  b.Affiliation,
			Role:         b.Role,
			Available:    true,
			Reason:       b.Reason,
			Audience:     remaining,
			SelfSessions: []uuid.UUID{b.Occupant.Session},
			At:           time.Now().UTC(),
		})
	}

	w.monitor.DeltaCommitted()
	c.reply.Resolve(struct{}{}, nil)
}

func (w *RoomWorker) handleAffiliationList(c *affiliationListCmd) {
	var action authz.Action
	switch c.filter {
	case domain.AffiliationOutcast:
		action = authz.ViewBanList
	case domain.AffiliationMember:
		action = authz.ViewMemberList
	case domain.AffiliationAdmin:
		action = authz.ViewAdminList
	case domain.AffiliationOwner:
		action = authz.ViewOwnerList
	default:
		c.reply.Resolve(nil, errors.ErrItemNotFound)
		return
	}
	if err := authz.Decide(w.room.Affiliation(c.actor), action); err != nil {
		c.reply.Resolve(nil, err)
		return
	}
	c.reply.Resolve(w.room.Records(c.filter), nil)
}

func (w *RoomWorker) handleRoleList(c *roleListCmd) {
	if err := authz.Decide(w.room.Affiliation(c.actor), authz.ViewModeratorList); err != nil {
		c.reply.Resolve(nil, err)
		return
	}
	var out []domain.Occupant
	for _, o := range w.room.Occupants() {
		if o.Role == c.filter {
			out = append(out, *o)
		}
	}
	c.reply.Resolve(out, nil)
}

func (w *RoomWorker) handleRegisterNickname(c *registerNicknameCmd) {
	if w.room.Affiliation(c.identity) == domain.AffiliationOutcast {
		c.reply.Resolve(struct{}{}, errors.ErrForbidden)
		return
	}
	if holder, found, err := w.repo.NicknameHolder(w.room.ID, c.nickname); err != nil {
		c.reply.Resolve(struct{}{}, err)
		return
	} else if found && holder != c.identity {
		c.reply.Resolve(struct{}{}, errors.ErrConflict)
		return
	}
	if o, ok := w.room.OccupantByNickname(c.nickname); ok && o.Identity != c.identity {
		c.reply.Resolve(struct{}{}, errors.ErrConflict)
		return
	}
	c.reply.Resolve(struct{}{}, w.repo.ReserveNickname(w.room.ID, c.identity, c.nickname))
}

func (w *RoomWorker) handleConfigure(ctx context.Context, c *configureCmd) {
	if w.room.Affiliation(c.actor) != domain.AffiliationOwner {
		c.reply.Resolve(struct{}{}, errors.ErrForbidden)
		return
	}

	old := w.room.Config
	if err := w.repo.SaveConfig(w.room.ID, c.cfg); err != nil {
		c.reply.Resolve(struct{}{}, err)
		return
	}
	w.room.Config = c.cfg

	// Switching to members-only evicts everyone below member.
	if c.cfg.MembersOnly && !old.MembersOnly {
		audience := w.room.Sessions()
		for _, o := range w.room.Occupants() {
			if w.room.Affiliation(o.Identity).Rank() >= domain.AffiliationMember.Rank() {
				continue
			}
			w.emit(ctx, event.PresenceUpdate{
				ID:           uuid.New(),
				Room:         w.room.ID,
				Nickname:     o.Nickname,
				Occupant:     o.Identity,
				Affiliation:  w.room.Affiliation(o.Identity),
				Role:         domain.RoleNone,
				Available:    false,
				Statuses:     []int{event.StatusMembersOnly},
				Audience:     audience,
				SelfSessions: []uuid.UUID{o.Session},
				At:           time.Now().UTC(),
			})
			w.room.RemoveOccupant(o.Nickname)
			w.directory.Leave(o.Session, w.room.ID)
			w.monitor.Evicted()
		}
	}

	if statuses := postureStatuses(old, c.cfg); len(statuses) > 0 {
		w.emit(ctx, event.ConfigChanged{
			ID:       uuid.New(),
			Room:     w.room.ID,
			Statuses: statuses,
			Audience: w.room.Sessions(),
			At:       time.Now().UTC(),
		})
	}
	c.reply.Resolve(struct{}{}, nil)
}

// postureStatuses maps a privacy/security posture change onto its
// room-wide status codes.
func postureStatuses(old, next domain.RoomConfig) []int {
	var statuses []int
	if old.PublicLogging != next.PublicLogging {
		if next.PublicLogging {
			statuses = append(statuses, event.StatusLoggingEnabled)
		} else {
			statuses = append(statuses, event.StatusLoggingDisabled)
		}
	}
	if old.SemiAnonymous != next.SemiAnonymous {
		if next.SemiAnonymous {
			statuses = append(statuses, event.StatusSemiAnonymous)
		} else {
			statuses = append(statuses, event.StatusNonAnonymous)
		}
	}
	return statuses
}

func (w *RoomWorker) handleDestroy(ctx context.Context, c *destroyCmd) {
	if w.room.Affiliation(c.actor) != domain.AffiliationOwner {
		c.reply.Resolve(struct{}{}, errors.ErrForbidden)
		return
	}

	w.emit(ctx, event.RoomDestroyed{
		ID:       uuid.New(),
		Room:     w.room.ID,
		Reason:   c.reason,
		Audience: w.room.Sessions(),
		At:       time.Now().UTC(),
	})
	for _, o := range w.room.Occupants() {
		w.room.RemoveOccupant(o.Nickname)
	}
	// A destroyed room leaves no entry behind in the directory.
	for _, session := range w.directory.SessionsForRoom(w.room.ID) {
		w.directory.Leave(session, w.room.ID)
	}
	if err := w.repo.DeleteRoom(w.room.ID); err != nil {
		c.reply.Resolve(struct{}{}, err)
		return
	}

	w.closed = true
	c.reply.Resolve(struct{}{}, nil)
}

func (w *RoomWorker) occupantBySession(session uuid.UUID) *domain.Occupant {
	for _, o := range w.room.Occupants() {
		if o.Session == session {
			return o
		}
	}
	return nil
}

// emit enqueues one event for the fanout worker. The send happens
// before the command's future resolves, which is the enqueue-before-ack
// guarantee.
func (w *RoomWorker) emit(ctx context.Context, evt event.DomainEvent) {
	if p, ok := evt.(event.PresenceUpdate); ok {
		p.Logged = w.room.Config.PublicLogging
		evt = p
	}
	select {
	case w.events <- evt:
	case <-ctx.Done():
		w.log.Warn("Dropping event, shutdown in progress", "room", evt.RoomID())
	}
}
