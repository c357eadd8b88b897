package config

import (
	"fmt"
	"log/slog"

	"github.com/roasbeef/pagesum/internal/store"
)

// OpenStore opens the configured durable store.
func (s StoreConfig) OpenStore(log *slog.Logger) (store.KVStore, error) {
	switch s.Backend {
	case BackendSQLite:
		kv, err := store.OpenSqlcStore(s.DBPath, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}

		return kv, nil

	case BackendNATS:
		kv, err := store.NewNATSStore(store.NATSConfig{
			URL:    s.NATSURL,
			Bucket: s.NATSBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("open nats store: %w", err)
		}

		return kv, nil

	case BackendMemory:
		return store.NewMemStore(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}
