// Package httpapi exposes the room engine over HTTP. Requests are plain
// JSON; presence delivery rides a long-lived server-sent-event stream
// opened by the join call, one stream per session.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"room-warden/domain"
	"room-warden/domain/event"
	apperrors "room-warden/errors"
	"room-warden/services"
)

type Server struct {
	log                  *slog.Logger
	service              services.IRoomService
	connectionBufferSize int
}

func NewServer(log *slog.Logger, service services.IRoomService, connectionBufferSize int) *Server {
	return &Server{log: log, service: service, connectionBufferSize: connectionBufferSize}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/rooms/{room}/stream", s.handleStream)
	mux.HandleFunc("POST /v1/rooms/{room}/affiliations", s.handleApplyDelta)
	mux.HandleFunc("GET /v1/rooms/{room}/affiliations", s.handleAffiliationList)
	mux.HandleFunc("GET /v1/rooms/{room}/roles", s.handleRoleList)
	mux.HandleFunc("PUT /v1/rooms/{room}/nickname", s.handleRegisterNickname)
	mux.HandleFunc("PUT /v1/rooms/{room}/config", s.handleConfigure)
	mux.HandleFunc("DELETE /v1/rooms/{room}", s.handleDestroy)
	return mux
}

// handleStream joins the room and holds the connection open for
// real-time delivery. It registers a dedicated sink in the engine's
// registry and blocks until the client disconnects; the deferred leave
// and disconnect keep the registry free of dead sessions.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	room := r.PathValue("room")
	session := uuid.New()
	sink := NewStreamSink(s.connectionBufferSize)

	resp, err := s.service.Join(r.Context(), services.JoinRequest{
		Room:     room,
		Identity: r.URL.Query().Get("identity"),
		Nickname: r.URL.Query().Get("nickname"),
		Session:  session,
		Sink:     sink,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() {
		// The request context is gone once the client drops; the seat
		// still has to be released.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.service.Leave(cleanupCtx, services.LeaveRequest{Room: room, Session: session})
		s.service.Disconnect(session)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	s.send(w, flusher, map[string]any{"type": "joined", "nickname": resp.Nickname, "role": resp.Role})

	for {
		select {
		case <-r.Context().Done():
			s.log.Warn("Client disconnected", "session", session, "room", room)
			return
		case evt := <-sink.ConnectedUserEvent:
			wire, ok := toWireEvent(evt)
			if !ok {
				continue
			}
			s.send(w, flusher, wire)
		}
	}
}

func (s *Server) handleApplyDelta(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor string                      `json:"actor"`
		Items []services.DeltaItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := s.service.ApplyDelta(r.Context(), services.DeltaRequest{
		Room:  r.PathValue("room"),
		Actor: body.Actor,
		Items: body.Items,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAffiliationList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.AffiliationList(r.Context(), services.AffiliationListRequest{
		Room:        r.PathValue("room"),
		Actor:       r.URL.Query().Get("actor"),
		Affiliation: r.URL.Query().Get("affiliation"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, entries)
}

func (s *Server) handleRoleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.RoleList(r.Context(), services.RoleListRequest{
		Room:  r.PathValue("room"),
		Actor: r.URL.Query().Get("actor"),
		Role:  r.URL.Query().Get("role"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, entries)
}

func (s *Server) handleRegisterNickname(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := s.service.RegisterNickname(r.Context(), services.RegisterNicknameRequest{
		Room:     r.PathValue("room"),
		Identity: body.Identity,
		Nickname: body.Nickname,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor         string `json:"actor"`
		MembersOnly   bool   `json:"members_only"`
		SemiAnonymous bool   `json:"semi_anonymous"`
		PublicLogging bool   `json:"public_logging"`
		Persistent    bool   `json:"persistent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := s.service.Configure(r.Context(), services.ConfigureRequest{
		Room:  r.PathValue("room"),
		Actor: body.Actor,
		Config: domain.RoomConfig{
			MembersOnly:   body.MembersOnly,
			SemiAnonymous: body.SemiAnonymous,
			PublicLogging: body.PublicLogging,
			Persistent:    body.Persistent,
		},
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	err := s.service.Destroy(r.Context(), services.DestroyRequest{
		Room:   r.PathValue("room"),
		Actor:  r.URL.Query().Get("actor"),
		Reason: r.URL.Query().Get("reason"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) send(w http.ResponseWriter, flusher http.Flusher, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("Failed to encode event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrNotAllowed),
		errors.Is(err, apperrors.ErrNicknameCensored):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrUnsupportedFeature):
		status = http.StatusNotImplemented
	case errors.Is(err, apperrors.ErrRequestTimeout):
		status = http.StatusGatewayTimeout
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

type wirePresence struct {
	Type        string    `json:"type"`
	Room        string    `json:"room"`
	Nickname    string    `json:"nickname"`
	Occupant    string    `json:"occupant"`
	Affiliation string    `json:"affiliation"`
	Role        string    `json:"role"`
	Available   bool      `json:"available"`
	Statuses    []int     `json:"statuses,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

type wireConfigChanged struct {
	Type     string    `json:"type"`
	Room     string    `json:"room"`
	Statuses []int     `json:"statuses"`
	At       time.Time `json:"at"`
}

type wireDestroyed struct {
	Type   string    `json:"type"`
	Room   string    `json:"room"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

func toWireEvent(evt event.DomainEvent) (any, bool) {
	switch e := evt.(type) {
	case event.PresenceUpdate:
		return wirePresence{
			Type:        "presence",
			Room:        e.Room.String(),
			Nickname:    e.Nickname,
			Occupant:    e.Occupant.String(),
			Affiliation: e.Affiliation.String(),
			Role:        e.Role.String(),
			Available:   e.Available,
			Statuses:    e.Statuses,
			Reason:      e.Reason,
			At:          e.At,
		}, true
	case event.ConfigChanged:
		return wireConfigChanged{Type: "config", Room: e.Room.String(), Statuses: e.Statuses, At: e.At}, true
	case event.RoomDestroyed:
		return wireDestroyed{Type: "destroyed", Room: e.Room.String(), Reason: e.Reason, At: e.At}, true
	default:
		return nil, false
	}
}
