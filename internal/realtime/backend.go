package realtime

import "github.com/amberparty/roomsync/internal/room"

// Backend is a remote shared-document store. The adapter opens at most one
// document per room per process and otherwise knows nothing about the wire
// protocol behind it.
type Backend interface {
	// Open returns the remote document for a room. Opening is cheap; no
	// network round trip is required until the document is used.
	Open(roomID string) (RemoteDoc, error)

	// Close releases the backend's connection.
	Close() error
}

// RemoteDoc is one room's shared document on the remote backend.
type RemoteDoc interface {
	// Fetch reads the current remote value. ok is false when the document
	// does not exist.
	Fetch() (snap *room.Snapshot, ok bool, err error)

	// Push overwrites the remote value. Last write wins; the backend does
	// no merging.
	Push(snap *room.Snapshot) error

	// Delete removes the remote document.
	Delete() error

	// Watch streams remote changes, nil meaning the document was deleted.
	// The returned function stops the watch.
	Watch(fn func(snap *room.Snapshot)) (cancel func(), err error)
}
