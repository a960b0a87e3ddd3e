package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/amberparty/roomsync/internal/room"
	"github.com/amberparty/roomsync/internal/syncstatus"
)

// roomSession is this process's handle on one room's remote document: the
// best-known remote value, a readiness gate resolved after the first remote
// fetch, and the remote change watch.
type roomSession struct {
	a      *Adapter
	roomID string
	doc    RemoteDoc

	mu          sync.Mutex
	readyCh     chan struct{}
	readyClosed bool
	initOK      bool
	initRunning bool
	watching    bool
	cached      *room.Snapshot
}

// init performs the first remote fetch and seeding. When the remote document
// is empty it is seeded from the fallback's current value; otherwise the
// remote value is adopted and overwrites the local cache. Seeding races with
// other clients are last-write-wins by design.
func (s *roomSession) init() {
	s.mu.Lock()
	s.initRunning = true
	s.mu.Unlock()

	// A failed first fetch means the backend is configured but unreachable,
	// which is a different condition than a per-operation fetch error later.
	remote, ok, err := s.doc.Fetch()
	if err != nil {
		s.a.degrade(s.roomID, syncstatus.ReasonBackendUnavailable, err)
		s.finishInit(false)
		return
	}

	if !ok {
		if local := s.a.fallback.Load(s.roomID); local != nil {
			if err := s.doc.Push(local); err != nil {
				s.a.degrade(s.roomID, syncstatus.ReasonRemoteWriteFailed, err)
				s.finishInit(false)
				return
			}
			s.setCached(local)
		} else {
			s.setCached(nil)
		}
	} else {
		s.setCached(remote)
		s.a.mirror(s.roomID, remote)
	}

	s.finishInit(true)
	s.a.status.Set(s.roomID, syncstatus.ModeRealtime, syncstatus.HealthHealthy, syncstatus.ReasonConnected)
	s.startWatch()
}

func (s *roomSession) finishInit(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initOK = ok
	s.initRunning = false
	if !s.readyClosed {
		close(s.readyCh)
		s.readyClosed = true
	}
}

// waitReady blocks until the first remote fetch has completed and reports
// whether it succeeded. There is no timeout: a stalled remote simply leaves
// the room degraded until the next successful operation.
func (s *roomSession) waitReady() bool {
	s.mu.Lock()
	ch := s.readyCh
	s.mu.Unlock()
	<-ch
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initOK
}

// current returns the best-known remote value once the session is ready.
func (s *roomSession) current() (*room.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.readyClosed || !s.initOK {
		return nil, false
	}
	return s.cached, true
}

func (s *roomSession) setCached(snap *room.Snapshot) {
	s.mu.Lock()
	s.cached = snap
	s.mu.Unlock()
}

// retryInitIfFailed re-runs the first fetch after a failure. Retried only on
// explicit reads, never on a timer.
func (s *roomSession) retryInitIfFailed() {
	s.mu.Lock()
	if !s.readyClosed || s.initOK || s.initRunning {
		s.mu.Unlock()
		return
	}
	s.readyCh = make(chan struct{})
	s.readyClosed = false
	s.initRunning = true
	s.mu.Unlock()

	go s.init()
}

// startWatch subscribes to the remote change feed, once for the session's
// lifetime. Every observed change is mirrored to the fallback and fans out
// to all local listeners from there.
func (s *roomSession) startWatch() {
	s.mu.Lock()
	if s.watching {
		s.mu.Unlock()
		return
	}
	s.watching = true
	s.mu.Unlock()

	_, err := s.doc.Watch(func(snap *room.Snapshot) {
		s.setCached(snap)
		s.a.mirror(s.roomID, snap)
	})
	if err != nil {
		s.mu.Lock()
		s.watching = false
		s.mu.Unlock()
		s.a.degrade(s.roomID, syncstatus.ReasonRemoteWatchFailed, err)
		return
	}

	log.Debug().Str("room_id", s.roomID).Msg("watching remote room document")
}
