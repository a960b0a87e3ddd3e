package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/amberparty/roomsync/internal/prompt"
	"github.com/amberparty/roomsync/internal/room"
	"github.com/amberparty/roomsync/internal/session"
	"github.com/amberparty/roomsync/internal/store"
	"github.com/amberparty/roomsync/internal/syncstatus"
)

func testCatalog() *prompt.Catalog {
	return &prompt.Catalog{
		Version:   "1",
		Modifier:  []prompt.Card{{ID: "m1", Text: "The worst "}},
		Situation: []prompt.Card{{ID: "s1", Text: "thing to say "}},
		Content:   []prompt.Card{{ID: "c1", Text: "about food"}},
	}
}

func newTestGateway(t *testing.T) (*Gateway, *store.Store, *syncstatus.Registry, *httptest.Server) {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	reg := syncstatus.NewRegistry(clockwork.NewFakeClock())
	rng := rand.New(rand.NewPCG(7, 11))
	ctrl := session.NewController(s, testCatalog(), "host-1", "Hosty", clockwork.NewFakeClock(), rng)
	g := New(s, reg, ctrl, "http://example.test", DefaultConfig())

	mux := http.NewServeMux()
	g.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return g, s, reg, srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readFrames(t *testing.T, conn *websocket.Conn, n int) []Frame {
	t.Helper()
	frames := make([]Frame, 0, n)
	for len(frames) < n {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestRoomSocketStreamsSnapshots(t *testing.T) {
	_, s, _, srv := newTestGateway(t)

	snap := room.New(room.Prompt{Text: "p"}, "u1", "A", time.Unix(50, 0).UTC())
	s.Save("r1", snap)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?room_id=r1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial frames: current snapshot and current sync status.
	frames := readFrames(t, conn, 2)
	types := map[string]bool{}
	for _, f := range frames {
		types[f.Type] = true
		if f.Type == frameSnapshot && (f.State == nil || f.State.HostID != "u1") {
			t.Errorf("initial snapshot frame = %+v", f.State)
		}
	}
	if !types[frameSnapshot] || !types[frameSyncStatus] {
		t.Fatalf("initial frame types = %v", types)
	}

	s.Update("r1", func(prev *room.Snapshot) *room.Snapshot {
		next := prev.Clone()
		next.Phase = room.PhaseVote
		return next
	})

	for {
		frames = readFrames(t, conn, 1)
		if frames[0].Type == frameSnapshot && frames[0].State != nil &&
			frames[0].State.Phase == room.PhaseVote {
			return
		}
	}
}

func TestRoomSocketRequiresRoomID(t *testing.T) {
	_, _, _, srv := newTestGateway(t)

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRoomQR(t *testing.T) {
	_, _, _, srv := newTestGateway(t)

	resp, err := http.Get(srv.URL + "/rooms/qr?room_id=r1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("response is not a PNG")
	}
}

func TestRoomStatusEndpoint(t *testing.T) {
	_, _, reg, srv := newTestGateway(t)
	reg.Set("r1", syncstatus.ModeRealtime, syncstatus.HealthDegraded, syncstatus.ReasonRemoteWriteFailed)

	resp, err := http.Get(srv.URL + "/rooms/status?room_id=r1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var st syncstatus.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Mode != syncstatus.ModeRealtime || st.Health != syncstatus.HealthDegraded {
		t.Errorf("status = %+v", st)
	}
}
