// Package telemetry delivers fire-and-forget adapter events to an optional
// HTTP endpoint. Delivery failures never affect gameplay; they are logged at
// debug level and otherwise swallowed.
package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Category classifies an event.
type Category string

const (
	CategorySync Category = "sync"
	CategoryAuth Category = "auth"
)

// Event is one reported adapter occurrence.
type Event struct {
	Category  Category  `json:"category"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	RoomID    string    `json:"room_id,omitempty"`
	Adapter   string    `json:"adapter"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives adapter events. The realtime adapter depends on this
// interface so tests can capture events in memory.
type Sink interface {
	Report(category Category, code, reason, roomID string)
}

// Reporter posts events to a telemetry endpoint. An empty endpoint disables
// remote delivery entirely; events are still logged.
type Reporter struct {
	endpoint    string
	adapterName string
	client      *http.Client
	clock       clockwork.Clock
}

var _ Sink = (*Reporter)(nil)

// NewReporter creates a reporter for the given endpoint. adapterName tags
// every event with the producing adapter implementation.
func NewReporter(endpoint, adapterName string, client *http.Client, clock clockwork.Clock) *Reporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Reporter{
		endpoint:    endpoint,
		adapterName: adapterName,
		client:      client,
		clock:       clock,
	}
}

// Report sends the event in the background and returns immediately.
func (r *Reporter) Report(category Category, code, reason, roomID string) {
	event := Event{
		Category:  category,
		Code:      code,
		Reason:    reason,
		RoomID:    roomID,
		Adapter:   r.adapterName,
		Timestamp: r.clock.Now().UTC(),
	}

	log.Debug().
		Str("category", string(event.Category)).
		Str("code", event.Code).
		Str("reason", event.Reason).
		Str("room_id", event.RoomID).
		Msg("adapter telemetry")

	if r.endpoint == "" {
		return
	}
	go r.deliver(event)
}

func (r *Reporter) deliver(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("telemetry delivery failed")
		return
	}
	resp.Body.Close()
}
