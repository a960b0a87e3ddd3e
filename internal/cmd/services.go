package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/amberparty/roomsync/internal/gateway"
	"github.com/amberparty/roomsync/internal/identity"
	"github.com/amberparty/roomsync/internal/prompt"
	"github.com/amberparty/roomsync/internal/realtime"
	"github.com/amberparty/roomsync/internal/session"
	"github.com/amberparty/roomsync/internal/store"
	"github.com/amberparty/roomsync/internal/syncstatus"
	"github.com/amberparty/roomsync/internal/telemetry"
)

type Services struct {
	Store      *store.Store
	Status     *syncstatus.Registry
	Telemetry  *telemetry.Reporter
	Adapter    *realtime.Adapter
	Catalog    *prompt.Catalog
	Identity   *identity.Identity
	Controller *session.Controller
	Gateway    *gateway.Gateway
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain:
	// store layer → realtime adapter → session controller → gateway.
	clock := clockwork.NewRealClock()

	if err := os.MkdirAll(config.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	localStore, err := store.New(config.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	status := syncstatus.NewRegistry(clock)
	reporter := telemetry.NewReporter(config.Sync.TelemetryEndpoint, "nats-kv", nil, clock)

	rtAdapter := realtime.NewAdapter(localStore, backendFactory(ctx, config, reporter), status, reporter)

	catalog, err := loadCatalog(ctx, config)
	if err != nil {
		localStore.Close()
		return nil, err
	}

	id, err := identity.LoadOrCreate(config.Storage.DataDir)
	if err != nil {
		localStore.Close()
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	controller := session.NewController(rtAdapter, catalog, id.UserID, id.DisplayName, clock, rng)

	gw := gateway.New(rtAdapter, status, controller, config.Server.InviteBaseURL, gateway.DefaultConfig())

	return &Services{
		Store:      localStore,
		Status:     status,
		Telemetry:  reporter,
		Adapter:    rtAdapter,
		Catalog:    catalog,
		Identity:   id,
		Controller: controller,
		Gateway:    gw,
	}, nil
}

// backendFactory returns nil when no NATS URL is configured, which pins the
// adapter to local mode without logging a failure.
func backendFactory(ctx context.Context, config *Config, reporter *telemetry.Reporter) func() (realtime.Backend, error) {
	if config.Sync.NATSURL == "" {
		return nil
	}

	natsCfg := realtime.NATSConfig{
		URL:           config.Sync.NATSURL,
		Bucket:        config.Sync.Bucket,
		ReconnectWait: config.Sync.ReconnectWait,
	}

	var tokens *realtime.TokenSource
	if config.Sync.AuthEndpoint != "" {
		tokens = realtime.NewTokenSource(config.Sync.AuthEndpoint, nil, reporter)
	}

	return func() (realtime.Backend, error) {
		return realtime.NewNATSBackend(ctx, natsCfg, tokens)
	}
}

func loadCatalog(ctx context.Context, config *Config) (*prompt.Catalog, error) {
	if config.Prompts.URL != "" {
		client := &http.Client{Timeout: 10 * time.Second}
		catalog, err := prompt.Fetch(ctx, client, config.Prompts.URL)
		if err == nil {
			return catalog, nil
		}
		log.Warn().Err(err).Str("url", config.Prompts.URL).Msg("prompt fetch failed, falling back to local file")
	}

	catalog, err := prompt.LoadFile(config.Prompts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt catalog: %w", err)
	}
	return catalog, nil
}
