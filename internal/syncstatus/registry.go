// Package syncstatus tracks per-room sync health: which backing mode a room
// runs in and whether the realtime backend is currently reachable. The state
// is purely observational; it informs UI and telemetry and never gates
// adapter operations.
package syncstatus

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Mode identifies the backing store a room is effectively using.
type Mode string

const (
	ModeLocal    Mode = "local"
	ModeRealtime Mode = "realtime"
)

// Health is the coarse reachability of the configured backend.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
)

// Reason codes published alongside status changes.
const (
	ReasonDefaultLocal       = "default_local"
	ReasonCreateClientFailed = "create_client_failed"
	ReasonBackendUnavailable = "nats_unavailable"
	ReasonConnected          = "connected"
	ReasonSynced             = "synced"
	ReasonOpenRoomFailed     = "open_room_failed"
	ReasonRemoteFetchFailed  = "remote_fetch_failed"
	ReasonRemoteWriteFailed  = "remote_write_failed"
	ReasonRemoteDeleteFailed = "remote_delete_failed"
	ReasonRemoteWatchFailed  = "remote_watch_failed"
)

// Status is the published sync state for one room.
type Status struct {
	RoomID    string    `json:"room_id"`
	Mode      Mode      `json:"mode"`
	Health    Health    `json:"health"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Listener receives every status change for a subscribed room.
type Listener func(Status)

// Registry is an explicitly constructed, injectable status service: created
// once per process and passed by reference to consumers so tests can run
// independent instances.
type Registry struct {
	clock clockwork.Clock

	mu        sync.Mutex
	statuses  map[string]Status
	listeners map[string]map[int]Listener
	nextID    int
}

// NewRegistry creates an empty registry.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:     clock,
		statuses:  make(map[string]Status),
		listeners: make(map[string]map[int]Listener),
	}
}

func (r *Registry) defaultStatus(roomID string) Status {
	return Status{
		RoomID:    roomID,
		Mode:      ModeLocal,
		Health:    HealthHealthy,
		Reason:    ReasonDefaultLocal,
		UpdatedAt: r.clock.Now(),
	}
}

// Get returns the current status for the room, or the local/healthy default
// for rooms never explicitly set.
func (r *Registry) Get(roomID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.statuses[roomID]; ok {
		return st
	}
	return r.defaultStatus(roomID)
}

// Set overwrites the room's status and synchronously notifies its listeners.
func (r *Registry) Set(roomID string, mode Mode, health Health, reason string) {
	next := Status{
		RoomID:    roomID,
		Mode:      mode,
		Health:    health,
		Reason:    reason,
		UpdatedAt: r.clock.Now(),
	}

	r.mu.Lock()
	r.statuses[roomID] = next
	set := r.listeners[roomID]
	listeners := make([]Listener, 0, len(set))
	for _, fn := range set {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// Subscribe registers fn for the room's status changes and immediately
// delivers the current (or default) status. The returned function removes
// only this listener.
func (r *Registry) Subscribe(roomID string, fn Listener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	set, ok := r.listeners[roomID]
	if !ok {
		set = make(map[int]Listener)
		r.listeners[roomID] = set
	}
	set[id] = fn
	r.mu.Unlock()

	fn(r.Get(roomID))

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.listeners[roomID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.listeners, roomID)
			}
		}
	}
}
