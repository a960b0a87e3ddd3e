package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/amberparty/roomsync/internal/room"
)

// NATSConfig holds connection settings for the JetStream KV backend.
type NATSConfig struct {
	URL           string
	Bucket        string
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns defaults suitable for a local NATS server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Bucket:        "ROOM_STATE",
		ReconnectWait: 2 * time.Second,
	}
}

// natsBackend stores one KV entry per room in a JetStream key-value bucket.
// The bucket's own last-write-wins semantics are the only cross-client
// arbiter; no merging happens here.
type natsBackend struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

var _ Backend = (*natsBackend)(nil)

// NewNATSBackend connects to NATS and ensures the room-state bucket exists.
// When tokens is non-nil, connection auth goes through the token exchange
// delegate.
func NewNATSBackend(ctx context.Context, cfg NATSConfig, tokens *TokenSource) (Backend, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	if tokens != nil {
		opts = append(opts, nats.TokenHandler(func() string {
			token, err := tokens.Token(context.Background(), "")
			if err != nil {
				log.Warn().Err(err).Msg("auth token exchange failed")
				return ""
			}
			return token
		}))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "party room snapshots, one key per room",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure KV bucket %s: %w", cfg.Bucket, err)
	}

	return &natsBackend{nc: nc, kv: kv}, nil
}

func (b *natsBackend) Open(roomID string) (RemoteDoc, error) {
	return &kvDoc{kv: b.kv, key: kvKey(roomID), roomID: roomID}, nil
}

func (b *natsBackend) Close() error {
	b.nc.Close()
	return nil
}

// kvKey maps a room id into the KV key character set, escaping anything
// outside [-_.a-zA-Z0-9] so distinct room ids never collide.
func kvKey(roomID string) string {
	var sb strings.Builder
	sb.WriteString("room.")
	for _, r := range roomID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "=%04X", r)
		}
	}
	return sb.String()
}

type kvDoc struct {
	kv     jetstream.KeyValue
	key    string
	roomID string
}

func (d *kvDoc) Fetch() (*room.Snapshot, bool, error) {
	entry, err := d.kv.Get(context.Background(), d.key)
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv get %s: %w", d.key, err)
	}

	var snap room.Snapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		log.Warn().Str("room_id", d.roomID).Err(err).Msg("discarding corrupt remote snapshot")
		return nil, false, nil
	}
	return &snap, true, nil
}

func (d *kvDoc) Push(snap *room.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := d.kv.Put(context.Background(), d.key, raw); err != nil {
		return fmt.Errorf("kv put %s: %w", d.key, err)
	}
	return nil
}

func (d *kvDoc) Delete() error {
	if err := d.kv.Purge(context.Background(), d.key); err != nil {
		return fmt.Errorf("kv purge %s: %w", d.key, err)
	}
	return nil
}

func (d *kvDoc) Watch(fn func(*room.Snapshot)) (func(), error) {
	watcher, err := d.kv.Watch(context.Background(), d.key)
	if err != nil {
		return nil, fmt.Errorf("kv watch %s: %w", d.key, err)
	}

	go func() {
		for entry := range watcher.Updates() {
			if entry == nil {
				// Initial replay marker.
				continue
			}
			switch entry.Operation() {
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				fn(nil)
			default:
				var snap room.Snapshot
				if err := json.Unmarshal(entry.Value(), &snap); err != nil {
					log.Warn().Str("room_id", d.roomID).Err(err).Msg("skipping corrupt remote update")
					continue
				}
				fn(&snap)
			}
		}
	}()

	return func() {
		if err := watcher.Stop(); err != nil {
			log.Debug().Err(err).Msg("stop KV watcher")
		}
	}, nil
}
