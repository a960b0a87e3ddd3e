package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/amberparty/roomsync/internal/room"
	"github.com/amberparty/roomsync/internal/session"
)

// Session drives game actions on behalf of this process's user identity.
// Implemented by session.Controller.
type Session interface {
	UserID() string
	Join(roomID string) (*room.Snapshot, error)
	Leave(roomID string) *room.Snapshot
	Kick(roomID, targetID string) (*room.Snapshot, error)
	SubmitAnswer(roomID, text string) (*room.Snapshot, error)
	CastVote(roomID, targetID string) (*room.Snapshot, error)
	StartVote(roomID string) (*room.Snapshot, error)
	ShowResult(roomID string) (*room.Snapshot, error)
	NextRound(roomID string) (*room.Snapshot, error)
	Restart(roomID string) (*room.Snapshot, error)
	SetRoundLimit(roomID string, limit int) (*room.Snapshot, error)
	FillDebugMembers(roomID string) (*room.Snapshot, error)
}

// actionRequest is the body of every game action POST.
type actionRequest struct {
	RoomID   string `json:"room_id"`
	TargetID string `json:"target_id,omitempty"`
	Text     string `json:"text,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (g *Gateway) sessionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/session/me", g.handleMe)
	mux.HandleFunc("/api/session/join", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.Join(req.RoomID)
	}))
	mux.HandleFunc("/api/session/leave", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.Leave(req.RoomID), nil
	}))
	mux.HandleFunc("/api/session/kick", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.Kick(req.RoomID, req.TargetID)
	}))
	mux.HandleFunc("/api/session/answer", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.SubmitAnswer(req.RoomID, req.Text)
	}))
	mux.HandleFunc("/api/session/vote", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.CastVote(req.RoomID, req.TargetID)
	}))
	mux.HandleFunc("/api/session/start-vote", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.StartVote(req.RoomID)
	}))
	mux.HandleFunc("/api/session/show-result", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.ShowResult(req.RoomID)
	}))
	mux.HandleFunc("/api/session/next-round", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.NextRound(req.RoomID)
	}))
	mux.HandleFunc("/api/session/restart", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.Restart(req.RoomID)
	}))
	mux.HandleFunc("/api/session/round-limit", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.SetRoundLimit(req.RoomID, req.Limit)
	}))
	mux.HandleFunc("/api/session/fill-debug", g.action(func(req actionRequest) (*room.Snapshot, error) {
		return g.session.FillDebugMembers(req.RoomID)
	}))
}

func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"user_id": g.session.UserID()}); err != nil {
		log.Error().Err(err).Msg("encode session identity response")
	}
}

// action wraps one game operation as a POST handler: decode the request,
// run the operation, return the resulting snapshot (null when the room was
// deleted).
func (g *Gateway) action(fn func(actionRequest) (*room.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.RoomID == "" {
			http.Error(w, "room_id is required", http.StatusBadRequest)
			return
		}

		snap, err := fn(req)
		if err != nil {
			log.Debug().Err(err).Str("room_id", req.RoomID).Msg("game action rejected")
			http.Error(w, err.Error(), actionErrorStatus(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			log.Error().Err(err).Str("room_id", req.RoomID).Msg("encode game action response")
		}
	}
}

func actionErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotHost), errors.Is(err, session.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, session.ErrRoomFull),
		errors.Is(err, session.ErrWrongPhase),
		errors.Is(err, session.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyAnswer), errors.Is(err, session.ErrInvalidVoteTarget):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
