// Package gateway exposes room snapshots to browsers: a websocket feed of
// snapshot and sync-status changes per room, plus invite QR codes. It only
// moves state; rendering is the client's problem.
package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amberparty/roomsync/internal/adapter"
	"github.com/amberparty/roomsync/internal/syncstatus"
)

// Config holds websocket connection settings.
type Config struct {
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Gateway serves the room websocket and HTTP surface.
type Gateway struct {
	adapter    adapter.RoomStateAdapter
	status     *syncstatus.Registry
	session    Session
	upgrader   websocket.Upgrader
	config     Config
	inviteBase string
}

// New creates a gateway over the given adapter and status registry. sess
// drives the game action endpoints and may be nil for a read-only gateway.
// inviteBase is the externally reachable base URL encoded into invite QR
// codes.
func New(a adapter.RoomStateAdapter, status *syncstatus.Registry, sess Session, inviteBase string, config Config) *Gateway {
	return &Gateway{
		adapter: a,
		status:  status,
		session: sess,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		inviteBase: inviteBase,
	}
}

// Routes registers the gateway's handlers on mux.
func (g *Gateway) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.HandleRoomSocket)
	mux.HandleFunc("/rooms/qr", g.HandleRoomQR)
	mux.HandleFunc("/rooms/status", g.HandleRoomStatus)
	if g.session != nil {
		g.sessionRoutes(mux)
	}
}
