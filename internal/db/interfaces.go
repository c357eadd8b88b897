package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/roasbeef/pagesum/internal/db/sqlc"
)

// DefaultStoreTimeout is the default timeout used for any interaction with
// the database.
var DefaultStoreTimeout = time.Second * 10

const (
	// DefaultNumTxRetries is the default number of times a transaction is
	// retried when it fails with a busy or locked error.
	DefaultNumTxRetries = 10

	// DefaultInitialRetryDelay is the base delay between retries. The
	// actual delay is drawn from 50%-150% of this value and doubles per
	// attempt, so goroutines started together do not retry in lockstep.
	DefaultInitialRetryDelay = time.Millisecond * 40

	// DefaultMaxRetryDelay caps the delay between retries.
	DefaultMaxRetryDelay = time.Second * 3
)

// TxOptions controls what type of database transaction is created.
type TxOptions interface {
	// ReadOnly returns true if the transaction should be read-only.
	ReadOnly() bool
}

// BaseTxOptions is the TxOptions implementation the database understands.
type BaseTxOptions struct {
	readOnly bool
}

// ReadOnly returns true if the transaction should be read only.
func (a *BaseTxOptions) ReadOnly() bool {
	return a.readOnly
}

// ReadTxOption returns a TxOptions for a read-only transaction.
func ReadTxOption() *BaseTxOptions {
	return &BaseTxOptions{readOnly: true}
}

// WriteTxOption returns a TxOptions for a write transaction.
func WriteTxOption() *BaseTxOptions {
	return &BaseTxOptions{readOnly: false}
}

// BatchedTx runs several operations over Q in a single atomic transaction.
type BatchedTx[Q any] interface {
	ExecTx(ctx context.Context, txOptions TxOptions,
		txBody func(Q) error) error
}

// QueryCreator builds a Q bound to a transaction.
type QueryCreator[Q any] func(*sql.Tx) Q

// BatchedQuerier can both run plain queries and open transactions.
type BatchedQuerier interface {
	sqlc.Querier

	// BeginTx creates a new database transaction.
	BeginTx(ctx context.Context, options TxOptions) (*sql.Tx, error)
}

// BaseDB couples a connection with its generated queries.
type BaseDB struct {
	*sql.DB

	*sqlc.Queries
}

// NewBaseDB creates a new BaseDB instance from a sql.DB connection.
func NewBaseDB(db *sql.DB) *BaseDB {
	return &BaseDB{
		DB:      db,
		Queries: sqlc.New(db),
	}
}

// BeginTx maps TxOptions onto sql.TxOptions and opens a transaction.
func (s *BaseDB) BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx,
	error) {

	return s.DB.BeginTx(ctx, &sql.TxOptions{
		ReadOnly: opts.ReadOnly(),
	})
}
