// Package realtime implements the room-state adapter that mirrors rooms
// through a shared-document backend. It composes over a fallback adapter
// (normally the local snapshot store), applies mutations optimistically to
// the fallback, and reconciles them against the remote document in the
// background. Every remote failure degrades to local-only operation; nothing
// in this package surfaces an error to callers of the adapter contract.
package realtime

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/amberparty/roomsync/internal/adapter"
	"github.com/amberparty/roomsync/internal/room"
	"github.com/amberparty/roomsync/internal/syncstatus"
	"github.com/amberparty/roomsync/internal/telemetry"
)

// Adapter is the realtime sync adapter. Construct with NewAdapter; the
// backend is built lazily on first use and the resulting mode (local-only or
// realtime) is fixed for the process lifetime.
type Adapter struct {
	fallback   adapter.RoomStateAdapter
	newBackend func() (Backend, error)
	status     *syncstatus.Registry
	tel        telemetry.Sink

	mu           sync.Mutex
	mode         syncstatus.Mode
	backend      Backend
	createFailed bool
	sessions     map[string]*roomSession
}

var _ adapter.RoomStateAdapter = (*Adapter)(nil)

// NewAdapter composes a realtime adapter over fallback. newBackend may be nil
// when no remote backend is configured, which pins the adapter to local-only
// mode without treating it as an error.
func NewAdapter(fallback adapter.RoomStateAdapter, newBackend func() (Backend, error), status *syncstatus.Registry, tel telemetry.Sink) *Adapter {
	return &Adapter{
		fallback:   fallback,
		newBackend: newBackend,
		status:     status,
		tel:        tel,
		sessions:   make(map[string]*roomSession),
	}
}

// Close shuts down the remote backend, if one was ever constructed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend == nil {
		return nil
	}
	return a.backend.Close()
}

// ensureMode decides local vs realtime on first call and never re-evaluates.
func (a *Adapter) ensureMode() syncstatus.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != "" {
		return a.mode
	}

	if a.newBackend == nil {
		a.mode = syncstatus.ModeLocal
		log.Info().Msg("realtime sync not configured, running local-only")
		return a.mode
	}

	backend, err := a.newBackend()
	if err != nil {
		a.mode = syncstatus.ModeLocal
		a.createFailed = true
		log.Warn().Err(err).Msg("realtime backend construction failed, running local-only")
		a.tel.Report(telemetry.CategorySync, syncstatus.ReasonCreateClientFailed, err.Error(), "")
		return a.mode
	}

	a.backend = backend
	a.mode = syncstatus.ModeRealtime
	return a.mode
}

// markLocalFallback publishes why a room is served locally. Absent
// configuration is a degraded-by-design mode and keeps the healthy default;
// a failed client construction is a real degradation.
func (a *Adapter) markLocalFallback(roomID string) {
	a.mu.Lock()
	failed := a.createFailed
	a.mu.Unlock()
	if failed {
		a.status.Set(roomID, syncstatus.ModeLocal, syncstatus.HealthDegraded, syncstatus.ReasonCreateClientFailed)
	}
}

// ensureSession returns the per-room session, creating it on first access.
// Returns nil when the adapter runs local-only or the document cannot be
// opened; the latter degrades status and is retried on the next call.
func (a *Adapter) ensureSession(roomID string) *roomSession {
	if a.ensureMode() == syncstatus.ModeLocal {
		a.markLocalFallback(roomID)
		return nil
	}

	a.mu.Lock()
	if sess, ok := a.sessions[roomID]; ok {
		a.mu.Unlock()
		return sess
	}
	backend := a.backend
	a.mu.Unlock()

	doc, err := backend.Open(roomID)
	if err != nil {
		a.degrade(roomID, syncstatus.ReasonOpenRoomFailed, err)
		return nil
	}

	sess := &roomSession{
		a:       a,
		roomID:  roomID,
		doc:     doc,
		readyCh: make(chan struct{}),
	}

	a.mu.Lock()
	if existing, ok := a.sessions[roomID]; ok {
		// Lost the race to another caller; use its session.
		a.mu.Unlock()
		return existing
	}
	a.sessions[roomID] = sess
	a.mu.Unlock()

	go sess.init()
	return sess
}

// Load returns the best currently-known snapshot: the remote view once the
// session has fetched it, otherwise the fallback's value. Whatever is
// returned is mirrored into the fallback so offline reads stay consistent.
func (a *Adapter) Load(roomID string) *room.Snapshot {
	sess := a.ensureSession(roomID)
	if sess == nil {
		return a.fallback.Load(roomID)
	}

	if snap, ok := sess.current(); ok {
		a.mirror(roomID, snap)
		return snap
	}

	// Remote not fetched yet (or the first fetch failed). Serve local and
	// let an explicit re-read act as the user-triggered retry.
	sess.retryInitIfFailed()
	return a.fallback.Load(roomID)
}

// Save writes through: the fallback write is the value returned immediately,
// the remote write follows asynchronously once the session is ready. A
// failed remote write degrades status but never rolls back the local value.
func (a *Adapter) Save(roomID string, snap *room.Snapshot) *room.Snapshot {
	out := a.fallback.Save(roomID, snap)

	if sess := a.ensureSession(roomID); sess != nil {
		go func() {
			if !sess.waitReady() {
				return
			}
			if err := sess.doc.Push(snap); err != nil {
				a.degrade(roomID, syncstatus.ReasonRemoteWriteFailed, err)
				return
			}
			sess.setCached(snap)
			a.status.Set(roomID, syncstatus.ModeRealtime, syncstatus.HealthHealthy, syncstatus.ReasonSynced)
		}()
	}
	return out
}

// Update applies fn optimistically to the fallback (returning and notifying
// immediately) and then reconciles: once the remote document is ready, fn is
// re-applied to the remote's own current value, which may differ from what
// the caller observed, and that result is pushed. Collisions between
// concurrent updates resolve as "last transform applied to the remote wins";
// this whole-document clobbering is the documented trade-off of a serverless
// peer-optimistic design.
func (a *Adapter) Update(roomID string, fn adapter.Updater) *room.Snapshot {
	sess := a.ensureSession(roomID)
	next := a.fallback.Update(roomID, fn)
	if sess != nil {
		go a.reconcile(sess, fn)
	}
	return next
}

// Subscribe funnels all notification sources through the fallback: optimistic
// local writes notify synchronously, and the session's remote watch mirrors
// every remote change into the fallback, which fans out to the same
// listeners.
func (a *Adapter) Subscribe(roomID string, fn adapter.Listener) func() {
	a.ensureSession(roomID)
	return a.fallback.Subscribe(roomID, fn)
}

func (a *Adapter) reconcile(sess *roomSession, fn adapter.Updater) {
	if !sess.waitReady() {
		return
	}

	remotePrev, ok, err := sess.doc.Fetch()
	if err != nil {
		a.degrade(sess.roomID, syncstatus.ReasonRemoteFetchFailed, err)
		return
	}
	if !ok {
		remotePrev = nil
	}

	result := fn(remotePrev)
	if result == nil {
		if err := sess.doc.Delete(); err != nil {
			a.degrade(sess.roomID, syncstatus.ReasonRemoteDeleteFailed, err)
			return
		}
	} else if err := sess.doc.Push(result); err != nil {
		a.degrade(sess.roomID, syncstatus.ReasonRemoteWriteFailed, err)
		return
	}

	sess.setCached(result)
	a.mirror(sess.roomID, result)
	a.status.Set(sess.roomID, syncstatus.ModeRealtime, syncstatus.HealthHealthy, syncstatus.ReasonSynced)
}

// mirror copies a remote-confirmed value into the fallback, skipping the
// write when the fallback already holds it so listeners are not re-notified
// with an identical snapshot.
func (a *Adapter) mirror(roomID string, snap *room.Snapshot) {
	if snapshotsEqual(a.fallback.Load(roomID), snap) {
		return
	}
	if snap == nil {
		a.fallback.Update(roomID, func(*room.Snapshot) *room.Snapshot { return nil })
		return
	}
	a.fallback.Save(roomID, snap)
}

func (a *Adapter) degrade(roomID, reason string, err error) {
	log.Warn().Str("room_id", roomID).Str("reason", reason).Err(err).Msg("realtime sync degraded")
	a.status.Set(roomID, syncstatus.ModeRealtime, syncstatus.HealthDegraded, reason)
	a.tel.Report(telemetry.CategorySync, reason, err.Error(), roomID)
}

func snapshotsEqual(x, y *room.Snapshot) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	xr, errX := json.Marshal(x)
	yr, errY := json.Marshal(y)
	if errX != nil || errY != nil {
		return false
	}
	return bytes.Equal(xr, yr)
}
