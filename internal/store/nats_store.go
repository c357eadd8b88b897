package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

// DefaultNATSBucket is the JetStream key-value bucket used when none is
// configured.
const DefaultNATSBucket = "pagesum"

// NATSConfig configures a NATSStore.
type NATSConfig struct {
	// URL of the NATS server. Defaults to nats.DefaultURL.
	URL string

	// Bucket is the JetStream KV bucket name.
	Bucket string

	// ConnectTimeout bounds the initial dial.
	ConnectTimeout time.Duration
}

// NATSStore implements KVStore with a NATS JetStream key-value bucket. It is
// used when the coordinator should not own local disk state.
type NATSStore struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSStore connects to NATS and opens (creating if needed) the bucket.
func NewNATSStore(cfg NATSConfig) (*NATSStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultNATSBucket
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	conn, err := nats.Connect(
		cfg.URL, nats.Timeout(cfg.ConnectTimeout), nats.Name("pagesumd"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	kv, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  cfg.Bucket,
			History: 1,
		})
	}
	if err != nil {
		_ = conn.Drain()
		return nil, fmt.Errorf("open kv bucket %q: %w", cfg.Bucket, err)
	}

	return &NATSStore{conn: conn, kv: kv}, nil
}

// Get returns the latest value stored under key.
func (n *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := n.kv.Get(key)
	switch {
	case errors.Is(err, nats.ErrKeyNotFound):
		return nil, ErrNotFound

	case err != nil:
		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	return entry.Value(), nil
}

// Set writes value under key.
func (n *NATSStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := n.kv.Put(key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	return nil
}

// Delete removes key. A missing key is not an error.
func (n *NATSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := n.kv.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

// Close drains the connection.
func (n *NATSStore) Close() error {
	return n.conn.Drain()
}

var _ KVStore = (*NATSStore)(nil)
