// Package services is the boundary between transports and the room
// engine: it validates raw requests, screens nicknames, parses wire
// enums into domain types, and delegates to the orchestrator.
package services

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"room-warden/contract"
	"room-warden/domain"
	"room-warden/moderation"
	"room-warden/runtime"
)

type IRoomService interface {
	Join(ctx context.Context, req JoinRequest) (JoinResponse, error)
	Leave(ctx context.Context, req LeaveRequest) error
	Disconnect(session uuid.UUID)
	ApplyDelta(ctx context.Context, req DeltaRequest) error
	AffiliationList(ctx context.Context, req AffiliationListRequest) ([]AffiliationEntry, error)
	RoleList(ctx context.Context, req RoleListRequest) ([]RoleEntry, error)
	RegisterNickname(ctx context.Context, req RegisterNicknameRequest) error
	Configure(ctx context.Context, req ConfigureRequest) error
	Destroy(ctx context.Context, req DestroyRequest) error
}

type JoinRequest struct {
	Room     string `validate:"required,contains=@"`
	Identity string `validate:"required,contains=@"`
	Nickname string `validate:"required,min=1,max=64"`
	Session  uuid.UUID
	Sink     contract.EventSink
}

type JoinResponse struct {
	Nickname string
	Role     string
}

type LeaveRequest struct {
	Room    string `validate:"required,contains=@"`
	Session uuid.UUID
}

// DeltaItemRequest is one wire-level edit. Target is an address, a
// session-qualified address, or a joined occupant's nickname; exactly
// one of Affiliation and Role must be set.
type DeltaItemRequest struct {
	Target      string  `validate:"required"`
	Affiliation *string `validate:"omitempty,oneof=owner admin member none outcast"`
	Role        *string `validate:"omitempty,oneof=moderator participant visitor none"`
	Reason      string  `validate:"max=1024"`
}

type DeltaRequest struct {
	Room  string             `validate:"required,contains=@"`
	Actor string             `validate:"required,contains=@"`
	Items []DeltaItemRequest `validate:"required,min=1,dive"`
}

type AffiliationListRequest struct {
	Room        string `validate:"required,contains=@"`
	Actor       string `validate:"required,contains=@"`
	Affiliation string `validate:"required,oneof=owner admin member outcast"`
}

// AffiliationEntry always carries both the identity and its
// affiliation, whatever the filter was.
type AffiliationEntry struct {
	Identity    string
	Affiliation string
	Reason      string
}

type RoleListRequest struct {
	Room  string `validate:"required,contains=@"`
	Actor string `validate:"required,contains=@"`
	Role  string `validate:"required,oneof=moderator participant visitor"`
}

type RoleEntry struct {
	Nickname string
	Role     string
}

type RegisterNicknameRequest struct {
	Room     string `validate:"required,contains=@"`
	Identity string `validate:"required,contains=@"`
	Nickname string `validate:"required,min=1,max=64"`
}

type ConfigureRequest struct {
	Room   string `validate:"required,contains=@"`
	Actor  string `validate:"required,contains=@"`
	Config domain.RoomConfig
}

type DestroyRequest struct {
	Room   string `validate:"required,contains=@"`
	Actor  string `validate:"required,contains=@"`
	Reason string `validate:"max=1024"`
}

type RoomService struct {
	orchestrator *runtime.Orchestrator
	moderator    *moderation.Moderator
	validator    *validator.Validate
}

func NewRoomService(o *runtime.Orchestrator, m *moderation.Moderator) *RoomService {
	return &RoomService{
		orchestrator: o,
		moderator:    m,
		validator:    validator.New(),
	}
}

func (s *RoomService) Join(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return JoinResponse{}, err
	}
	if err := s.moderator.Screen(req.Nickname); err != nil {
		return JoinResponse{}, err
	}

	occupant, err := s.orchestrator.Join(ctx,
		domain.RoomID(req.Room),
		domain.ParseBareID(req.Identity),
		req.Session,
		req.Nickname,
		req.Sink,
	)
	if err != nil {
		return JoinResponse{}, err
	}
	return JoinResponse{Nickname: occupant.Nickname, Role: occupant.Role.String()}, nil
}

func (s *RoomService) Leave(ctx context.Context, req LeaveRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	return s.orchestrator.Leave(ctx, domain.RoomID(req.Room), req.Session)
}

func (s *RoomService) Disconnect(session uuid.UUID) {
	s.orchestrator.Disconnect(session)
}

func (s *RoomService) ApplyDelta(ctx context.Context, req DeltaRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	items, err := parseItems(req.Items)
	if err != nil {
		return err
	}
	return s.orchestrator.ApplyDelta(ctx, domain.RoomID(req.Room), domain.ParseBareID(req.Actor), items)
}

func (s *RoomService) AffiliationList(ctx context.Context, req AffiliationListRequest) ([]AffiliationEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	filter, err := domain.ParseAffiliation(req.Affiliation)
	if err != nil {
		return nil, err
	}
	records, err := s.orchestrator.AffiliationList(ctx, domain.RoomID(req.Room), domain.ParseBareID(req.Actor), filter)
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(rec domain.AffiliationRecord, _ int) AffiliationEntry {
		return AffiliationEntry{
			Identity:    rec.Identity.String(),
			Affiliation: rec.Affiliation.String(),
			Reason:      rec.Reason,
		}
	}), nil
}

func (s *RoomService) RoleList(ctx context.Context, req RoleListRequest) ([]RoleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	filter, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	occupants, err := s.orchestrator.RoleList(ctx, domain.RoomID(req.Room), domain.ParseBareID(req.Actor), filter)
	if err != nil {
		return nil, err
	}
	return lo.Map(occupants, func(o domain.Occupant, _ int) RoleEntry {
		return RoleEntry{Nickname: o.Nickname, Role: o.Role.String()}
	}), nil
}

func (s *RoomService) RegisterNickname(ctx context.Context, req RegisterNicknameRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if err := s.moderator.Screen(req.Nickname); err != nil {
		return err
	}
	return s.orchestrator.RegisterNickname(ctx, domain.RoomID(req.Room), domain.ParseBareID(req.Identity), req.Nickname)
}

func (s *RoomService) Configure(ctx context.Context, req ConfigureRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	return s.orchestrator.Configure(ctx, domain.RoomID(req.Room), domain.ParseBareID(req.Actor), req.Config)
}

func (s *RoomService) Destroy(ctx context.Context, req DestroyRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	return s.orchestrator.Destroy(ctx, domain.RoomID(req.Room), domain.ParseBareID(req.Actor), req.Reason)
}

func parseItems(in []DeltaItemRequest) ([]domain.DeltaItem, error) {
	out := make([]domain.DeltaItem, 0, len(in))
	for _, item := range in {
		parsed := domain.DeltaItem{Target: item.Target, Reason: item.Reason}
		if item.Affiliation != nil {
			aff, err := domain.ParseAffiliation(*item.Affiliation)
			if err != nil {
				return nil, err
			}
			parsed.Affiliation = &aff
		}
		if item.Role != nil {
			role, err := domain.ParseRole(*item.Role)
			if err != nil {
				return nil, err
			}
			parsed.Role = &role
		}
		out = append(out, parsed)
	}
	return out, nil
}
