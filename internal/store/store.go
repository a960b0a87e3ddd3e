// Package store implements the local snapshot store: durable, synchronous
// persistence of one JSON document per room, scoped to this client. It is the
// fallback of last resort for every other adapter.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/amberparty/roomsync/internal/adapter"
	"github.com/amberparty/roomsync/internal/room"
)

const (
	keyPrefix = "room_state."
	keySuffix = ".json"
)

// Store persists room snapshots as JSON files under a single directory and
// notifies subscribers of changes from this process and, via a directory
// watcher, from other local processes sharing the same data directory.
//
// Update is read-modify-write without cross-process locking; races between
// two local processes resolve last-write-wins. That is an accepted
// limitation of the single-user-per-client model, not a bug.
type Store struct {
	dir     string
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	lastRaw   map[string][]byte
	listeners map[string]map[int]adapter.Listener
	nextID    int
	closed    bool
}

var _ adapter.RoomStateAdapter = (*Store)(nil)

// New creates a store rooted at dir, creating the directory if needed, and
// starts the cross-process change watcher.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create store watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch store dir: %w", err)
	}

	s := &Store{
		dir:       dir,
		watcher:   watcher,
		lastRaw:   make(map[string][]byte),
		listeners: make(map[string]map[int]adapter.Listener),
	}
	go s.watch()
	return s, nil
}

// Close stops the change watcher. Pending listeners are not invoked again.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.watcher.Close()
}

func roomKey(roomID string) string {
	return keyPrefix + url.PathEscape(roomID) + keySuffix
}

func roomIDFromKey(name string) (string, bool) {
	if !strings.HasPrefix(name, keyPrefix) || !strings.HasSuffix(name, keySuffix) {
		return "", false
	}
	escaped := strings.TrimSuffix(strings.TrimPrefix(name, keyPrefix), keySuffix)
	id, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	return id, true
}

func (s *Store) path(roomID string) string {
	return filepath.Join(s.dir, roomKey(roomID))
}

// Load returns the stored snapshot, or nil when the room does not exist.
// A corrupt document is treated as absent rather than an error.
func (s *Store) Load(roomID string) *room.Snapshot {
	raw, err := os.ReadFile(s.path(roomID))
	if err != nil {
		return nil
	}
	var snap room.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn().Str("room_id", roomID).Err(err).Msg("discarding corrupt room snapshot")
		return nil
	}
	return &snap
}

// Save overwrites the room document and returns the stored snapshot.
// Persistence failures are logged, not returned; the in-memory view still
// propagates to subscribers so gameplay never blocks on disk health.
func (s *Store) Save(roomID string, snap *room.Snapshot) *room.Snapshot {
	s.mu.Lock()
	s.persist(roomID, snap)
	listeners := s.listenersFor(roomID)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// Update applies fn to the current snapshot as an atomic read-modify-write
// within this process. fn returning nil deletes the room.
func (s *Store) Update(roomID string, fn adapter.Updater) *room.Snapshot {
	s.mu.Lock()
	next := fn(s.Load(roomID))
	s.persist(roomID, next)
	listeners := s.listenersFor(roomID)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Subscribe registers fn for changes to the room, invoking it once
// immediately with the current snapshot.
func (s *Store) Subscribe(roomID string, fn adapter.Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	set, ok := s.listeners[roomID]
	if !ok {
		set = make(map[int]adapter.Listener)
		s.listeners[roomID] = set
	}
	set[id] = fn
	s.mu.Unlock()

	fn(s.Load(roomID))

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.listeners[roomID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.listeners, roomID)
			}
		}
	}
}

// persist writes or removes the document and records the raw bytes so the
// watcher can tell our own writes apart from other processes'. Caller holds mu.
func (s *Store) persist(roomID string, snap *room.Snapshot) {
	if snap == nil {
		delete(s.lastRaw, roomID)
		if err := os.Remove(s.path(roomID)); err != nil && !os.IsNotExist(err) {
			log.Error().Str("room_id", roomID).Err(err).Msg("remove room snapshot")
		}
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		log.Error().Str("room_id", roomID).Err(err).Msg("encode room snapshot")
		return
	}
	s.lastRaw[roomID] = raw

	// Write-then-rename keeps watchers in other processes from reading a
	// partially written document.
	tmp := s.path(roomID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		log.Error().Str("room_id", roomID).Err(err).Msg("write room snapshot")
		return
	}
	if err := os.Rename(tmp, s.path(roomID)); err != nil {
		log.Error().Str("room_id", roomID).Err(err).Msg("rename room snapshot")
	}
}

func (s *Store) listenersFor(roomID string) []adapter.Listener {
	set := s.listeners[roomID]
	out := make([]adapter.Listener, 0, len(set))
	for _, fn := range set {
		out = append(out, fn)
	}
	return out
}

// watch dispatches filesystem events from other local processes to
// subscribers, filtered by exact key match and deduplicated against this
// process's own writes.
func (s *Store) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			roomID, ok := roomIDFromKey(filepath.Base(event.Name))
			if !ok {
				continue
			}
			s.dispatchExternal(roomID)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("store watcher error")
		}
	}
}

func (s *Store) dispatchExternal(roomID string) {
	snap := s.Load(roomID)

	var raw []byte
	if snap != nil {
		raw, _ = json.Marshal(snap)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if bytes.Equal(raw, s.lastRaw[roomID]) {
		// Our own write landing on disk; subscribers saw it already.
		s.mu.Unlock()
		return
	}
	if raw == nil {
		delete(s.lastRaw, roomID)
	} else {
		s.lastRaw[roomID] = raw
	}
	listeners := s.listenersFor(roomID)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
