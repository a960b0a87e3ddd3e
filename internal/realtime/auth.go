package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/amberparty/roomsync/internal/telemetry"
)

// Auth failure codes, one per outcome class of the token exchange.
const (
	authCodeNetworkError      = "auth_network_error"
	authCodeEndpointError     = "auth_endpoint_error"
	authCodeHTTPError         = "auth_http_error"
	authCodeMalformedResponse = "auth_malformed_response"
)

// TokenSource exchanges a room id for a backend access token through an
// out-of-band auth endpoint. Every non-success outcome is classified into
// exactly one failure code and reported through telemetry before the error
// is returned to the backend client.
type TokenSource struct {
	endpoint string
	client   *http.Client
	tel      telemetry.Sink
}

// NewTokenSource creates a token source for the given auth endpoint.
func NewTokenSource(endpoint string, client *http.Client, tel telemetry.Sink) *TokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenSource{
		endpoint: endpoint,
		client:   client,
		tel:      tel,
	}
}

type authResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Token requests an access token for the given room.
func (t *TokenSource) Token(ctx context.Context, roomID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"room_id": roomID})
	if err != nil {
		return "", fmt.Errorf("encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.tel.Report(telemetry.CategoryAuth, authCodeNetworkError, err.Error(), roomID)
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.tel.Report(telemetry.CategoryAuth, authCodeNetworkError, err.Error(), roomID)
		return "", fmt.Errorf("read auth response: %w", err)
	}

	var parsed authResponse
	parseErr := json.Unmarshal(raw, &parsed)

	// A structured error from the endpoint takes precedence over the HTTP
	// status so the endpoint's own reason survives.
	if parseErr == nil && parsed.Error != "" {
		t.tel.Report(telemetry.CategoryAuth, authCodeEndpointError, parsed.Error, roomID)
		return "", fmt.Errorf("auth endpoint error: %s", parsed.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.tel.Report(telemetry.CategoryAuth, authCodeHTTPError, strconv.Itoa(resp.StatusCode), roomID)
		return "", fmt.Errorf("auth endpoint status %d", resp.StatusCode)
	}
	if parseErr != nil || parsed.Token == "" {
		reason := "missing token"
		if parseErr != nil {
			reason = parseErr.Error()
		}
		t.tel.Report(telemetry.CategoryAuth, authCodeMalformedResponse, reason, roomID)
		return "", fmt.Errorf("malformed auth response: %s", reason)
	}

	return parsed.Token, nil
}
