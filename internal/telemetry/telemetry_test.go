package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestReportDeliversEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	rep := NewReporter(srv.URL, "natskv", srv.Client(), clock)
	rep.Report(CategorySync, "remote_write_failed", "kv put: timeout", "r1")

	select {
	case ev := <-received:
		if ev.Category != CategorySync || ev.Code != "remote_write_failed" || ev.RoomID != "r1" {
			t.Errorf("event = %+v", ev)
		}
		if ev.Adapter != "natskv" {
			t.Errorf("adapter = %q, want natskv", ev.Adapter)
		}
		if !ev.Timestamp.Equal(clock.Now().UTC()) {
			t.Errorf("timestamp = %v, want %v", ev.Timestamp, clock.Now().UTC())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestEmptyEndpointDisablesDelivery(t *testing.T) {
	rep := NewReporter("", "natskv", nil, clockwork.NewFakeClock())
	// Must not panic or block.
	rep.Report(CategoryAuth, "auth_network_error", "dial refused", "")
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	rep := NewReporter("http://127.0.0.1:1/nowhere", "natskv", &http.Client{Timeout: time.Second}, clockwork.NewFakeClock())
	rep.Report(CategorySync, "remote_fetch_failed", "unreachable", "r1")
	// Nothing to assert beyond "does not panic"; failures are fire-and-forget.
}
