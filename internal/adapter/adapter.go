// Package adapter defines the room-state adapter contract that every storage
// backend satisfies. Callers depend only on this interface; concrete
// implementations are the local snapshot store and the realtime sync adapter
// composed on top of it.
package adapter

import "github.com/amberparty/roomsync/internal/room"

// Updater is a read-modify-write transform. It receives the current snapshot
// (nil when the room does not exist) and returns the next one; returning nil
// deletes the room.
//
// For remote-backed adapters the same transform is re-applied during
// reconciliation against a base that may differ from what the caller
// observed, so transforms must tolerate any valid base.
type Updater func(prev *room.Snapshot) *room.Snapshot

// Listener receives the adapter's view of a room snapshot whenever it
// changes. A nil snapshot means the room was deleted.
type Listener func(s *room.Snapshot)

// RoomStateAdapter is the uniform contract all backends implement.
//
// All methods are synchronous from the caller's point of view and return the
// latest known local value immediately; remote reconciliation, where present,
// happens asynchronously in the background and is surfaced through Subscribe.
type RoomStateAdapter interface {
	// Load returns the best currently-known snapshot for the room, or nil
	// if the room does not exist.
	Load(roomID string) *room.Snapshot

	// Save unconditionally overwrites the room's document and returns it.
	Save(roomID string, s *room.Snapshot) *room.Snapshot

	// Update applies fn to the current snapshot as an atomic
	// read-modify-write with respect to the adapter's own local view,
	// persists the result and returns it.
	Update(roomID string, fn Updater) *room.Snapshot

	// Subscribe registers a listener for snapshot changes from any source.
	// The listener is invoked once immediately with the current snapshot.
	// The returned function removes the listener without affecting other
	// subscribers.
	Subscribe(roomID string, fn Listener) (cancel func())
}
