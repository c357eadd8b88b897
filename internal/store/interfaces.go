// Package store provides the durable key-value storage the coordinator
// persists its state into.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set or was
// deleted.
var ErrNotFound = errors.New("store: key not found")

const (
	// HistoryKey holds the bounded, newest-first summary history.
	HistoryKey = "summaryHistory"

	// CacheKey holds the bounded content-hash to summary cache as an
	// ordered list of pairs.
	CacheKey = "summaryCache"
)

// KVStore is an asynchronous-safe durable key-value store. Implementations
// must be safe for concurrent use.
type KVStore interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the resources held by the store.
	Close() error
}
