// Package identity persists the stable per-client member id and display
// name. The rest of the system treats both as opaque strings.
package identity

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const fileName = "identity.json"

// Identity is this client's durable membership identity.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func path(dir string) string {
	return filepath.Join(dir, fileName)
}

// LoadOrCreate reads the stored identity, creating and persisting a fresh
// one (random uuid, generated guest name) when none exists or the stored
// document is unreadable.
func LoadOrCreate(dir string) (*Identity, error) {
	raw, err := os.ReadFile(path(dir))
	if err == nil {
		var id Identity
		if jsonErr := json.Unmarshal(raw, &id); jsonErr == nil && id.UserID != "" {
			if id.DisplayName == "" {
				id.DisplayName = guestName()
			}
			return &id, nil
		}
	}

	id := &Identity{
		UserID:      uuid.NewString(),
		DisplayName: guestName(),
	}
	if err := save(dir, id); err != nil {
		return nil, err
	}
	return id, nil
}

// SetDisplayName updates and persists the display name.
func SetDisplayName(dir string, id *Identity, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("identity: display name must not be empty")
	}
	id.DisplayName = name
	return save(dir, id)
}

func save(dir string, id *Identity) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := os.WriteFile(path(dir), raw, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

func guestName() string {
	buf := make([]byte, 2)
	rand.Read(buf)
	return fmt.Sprintf("Guest-%02X%02X", buf[0], buf[1])
}
