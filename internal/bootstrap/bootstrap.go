// Package bootstrap builds the storage and realtime backends selected by
// configuration. It is shared by the API server and the migrate CLI.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/config"
	natsclient "github.com/capitalize-ai/care-messaging/internal/nats"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/internal/store/postgres"
	"github.com/capitalize-ai/care-messaging/internal/store/sqlite"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

// OpenStore connects to the configured store. The schema is not touched.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		st, err := postgres.Connect(ctx, postgres.Config{
			URL:      cfg.DatabaseURL,
			MaxConns: int32(cfg.DBMaxConns),
			Timeout:  cfg.StoreTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StoreDriverSQLite:
		st, err := sqlite.Open(ctx, sqlite.Config{
			Path:    cfg.SQLitePath,
			Timeout: cfg.StoreTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenBroker starts the configured realtime backend. The returned cleanup
// releases it and is never nil.
func OpenBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (realtime.Broker, func(), error) {
	switch cfg.RealtimeDriver {
	case config.RealtimeDriverMemory:
		hub := realtime.NewHub(cfg.RealtimeBuffer, log)
		return hub, func() { _ = hub.Close() }, nil

	case config.RealtimeDriverNATS:
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return nil, func() {}, err
		}

		broker, err := natsclient.NewBroker(ctx, client, cfg.RealtimeBuffer, log)
		if err != nil {
			client.Close()
			return nil, func() {}, err
		}

		return broker, func() {
			if err := broker.Close(); err != nil {
				log.Warn("failed to close realtime broker", zap.Error(err))
			}
			client.Close()
		}, nil

	default:
		return nil, func() {}, fmt.Errorf("unknown realtime driver %q", cfg.RealtimeDriver)
	}
}
