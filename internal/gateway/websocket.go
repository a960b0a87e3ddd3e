package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/amberparty/roomsync/internal/room"
	"github.com/amberparty/roomsync/internal/syncstatus"
)

// Frame is one websocket message to a client.
type Frame struct {
	Type   string             `json:"type"`
	RoomID string             `json:"room_id"`
	State  *room.Snapshot     `json:"state,omitempty"`
	Status *syncstatus.Status `json:"status,omitempty"`
}

const (
	frameSnapshot   = "snapshot"
	frameSyncStatus = "sync_status"
)

// HandleRoomSocket upgrades the connection and streams every snapshot and
// sync-status change for the requested room. The first frames carry the
// current values.
func (g *Gateway) HandleRoomSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to upgrade websocket connection")
		return
	}

	send := make(chan []byte, 64)
	done := make(chan struct{})

	enqueue := func(frame Frame) {
		payload, err := json.Marshal(frame)
		if err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("encode websocket frame")
			return
		}
		select {
		case send <- payload:
		case <-done:
		default:
			// Slow client; drop the frame rather than block the adapter.
			log.Warn().Str("room_id", roomID).Msg("dropping frame for slow websocket client")
		}
	}

	cancelSnapshots := g.adapter.Subscribe(roomID, func(snap *room.Snapshot) {
		enqueue(Frame{Type: frameSnapshot, RoomID: roomID, State: snap})
	})
	cancelStatus := g.status.Subscribe(roomID, func(st syncstatus.Status) {
		enqueue(Frame{Type: frameSyncStatus, RoomID: roomID, Status: &st})
	})

	go g.writePump(conn, roomID, send, done)

	// Read loop only detects disconnect; clients send nothing meaningful.
	conn.SetReadLimit(g.config.MaxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancelSnapshots()
	cancelStatus()
	close(done)
	conn.Close()
}

func (g *Gateway) writePump(conn *websocket.Conn, roomID string, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(g.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-send:
			conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Err(err).Str("room_id", roomID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
