package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roasbeef/pagesum/internal/db"
	"github.com/roasbeef/pagesum/internal/db/sqlc"
)

// SqlcStore implements KVStore on top of the sqlc queries of a migrated
// SQLite database. Writes run through a TransactionExecutor so busy or locked
// errors are retried with backoff.
type SqlcStore struct {
	sqlite *db.SqliteStore
	exec   *db.TransactionExecutor[*sqlc.Queries]
}

// NewSqlcStore wraps an opened SqliteStore.
func NewSqlcStore(sqlite *db.SqliteStore, log *slog.Logger) *SqlcStore {
	if log == nil {
		log = slog.Default()
	}

	exec := db.NewTransactionExecutor(
		sqlite.BaseDB, func(tx *sql.Tx) *sqlc.Queries {
			return sqlite.WithTx(tx)
		}, log.With("component", "kvstore"),
	)

	return &SqlcStore{
		sqlite: sqlite,
		exec:   exec,
	}
}

// OpenSqlcStore opens (and migrates) the database at path and returns a
// store over it.
func OpenSqlcStore(path string, log *slog.Logger) (*SqlcStore, error) {
	sqlite, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: path,
	}, log)
	if err != nil {
		return nil, err
	}

	return NewSqlcStore(sqlite, log), nil
}

// Get returns the value stored under key.
func (s *SqlcStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.sqlite.GetKV(ctx, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound

	case err != nil:
		return nil, fmt.Errorf("get %q: %w", key, db.MapSQLError(err))
	}

	return entry.Value, nil
}

// Set upserts value under key.
func (s *SqlcStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.exec.ExecTx(ctx, db.WriteTxOption(),
		func(q *sqlc.Queries) error {
			return q.UpsertKV(ctx, sqlc.UpsertKVParams{
				Key:       key,
				Value:     value,
				UpdatedAt: time.Now().Unix(),
			})
		},
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	return nil
}

// Delete removes key if present.
func (s *SqlcStore) Delete(ctx context.Context, key string) error {
	err := s.exec.ExecTx(ctx, db.WriteTxOption(),
		func(q *sqlc.Queries) error {
			_, err := q.DeleteKV(ctx, key)
			return err
		},
	)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

// Keys lists every stored key, mainly for diagnostics.
func (s *SqlcStore) Keys(ctx context.Context) ([]string, error) {
	return s.sqlite.ListKVKeys(ctx)
}

// Close closes the database.
func (s *SqlcStore) Close() error {
	return s.sqlite.Close()
}

var _ KVStore = (*SqlcStore)(nil)
