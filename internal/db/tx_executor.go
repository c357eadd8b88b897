package db

import (
	"context"
	"log/slog"
	"math"
	prand "math/rand"
	"time"
)

type txExecutorOptions struct {
	numRetries        int
	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration
}

func defaultTxExecutorOptions() *txExecutorOptions {
	return &txExecutorOptions{
		numRetries:        DefaultNumTxRetries,
		initialRetryDelay: DefaultInitialRetryDelay,
		maxRetryDelay:     DefaultMaxRetryDelay,
	}
}

// randRetryDelay returns a delay in 50%-150% of the initial delay, doubled
// per attempt and capped at maxRetryDelay.
func (t *txExecutorOptions) randRetryDelay(attempt int) time.Duration {
	half := t.initialRetryDelay / 2
	jitter := time.Duration(prand.Int63n(int64(t.initialRetryDelay))) //nolint:gosec
	delay := half + jitter

	if attempt == 0 {
		return delay
	}

	factor := time.Duration(math.Pow(2, math.Min(float64(attempt), 32)))
	delay *= factor //nolint:durationcheck

	if delay > t.maxRetryDelay {
		return t.maxRetryDelay
	}

	return delay
}

// TxExecutorOption is a functional option for NewTransactionExecutor.
type TxExecutorOption func(*txExecutorOptions)

// WithTxRetries sets how many times a busy/locked transaction is retried.
func WithTxRetries(numRetries int) TxExecutorOption {
	return func(o *txExecutorOptions) {
		o.numRetries = numRetries
	}
}

// WithTxRetryDelay sets the initial retry delay.
func WithTxRetryDelay(delay time.Duration) TxExecutorOption {
	return func(o *txExecutorOptions) {
		o.initialRetryDelay = delay
	}
}

// TransactionExecutor runs transaction bodies over a Query type created from
// each *sql.Tx, retrying serialization and deadlock failures with
// randomized backoff.
type TransactionExecutor[Query any] struct {
	BatchedQuerier

	createQuery QueryCreator[Query]
	opts        *txExecutorOptions
	log         *slog.Logger
}

// NewTransactionExecutor creates a new TransactionExecutor.
func NewTransactionExecutor[Querier any](db BatchedQuerier,
	createQuery QueryCreator[Querier], log *slog.Logger,
	opts ...TxExecutorOption) *TransactionExecutor[Querier] {

	txOpts := defaultTxExecutorOptions()
	for _, optFunc := range opts {
		optFunc(txOpts)
	}

	return &TransactionExecutor[Querier]{
		BatchedQuerier: db,
		createQuery:    createQuery,
		opts:           txOpts,
		log:            log,
	}
}

// ExecTx runs txBody inside a transaction, committing on success.
func (t *TransactionExecutor[Q]) ExecTx(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) error {

	waitBeforeRetry := func(attempt int) {
		delay := t.opts.randRetryDelay(attempt)

		t.log.DebugContext(ctx, "Retrying transaction after busy or "+
			"locked error", "attempt_number", attempt,
			"delay", delay)

		time.Sleep(delay)
	}

	for i := 0; i < t.opts.numRetries; i++ {
		retry, err := t.attempt(ctx, txOptions, txBody)
		if retry {
			waitBeforeRetry(i)
			continue
		}

		return err
	}

	return ErrRetriesExceeded
}

// attempt runs a single transaction. It reports whether the failure is
// retryable.
func (t *TransactionExecutor[Q]) attempt(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) (bool, error) {

	tx, err := t.BeginTx(ctx, txOptions)
	if err != nil {
		dbErr := MapSQLError(err)
		return IsSerializationOrDeadlockError(dbErr), dbErr
	}

	// Rollback after a successful commit is a no-op.
	defer func() {
		_ = tx.Rollback()
	}()

	if err := txBody(t.createQuery(tx)); err != nil {
		dbErr := MapSQLError(err)
		return IsSerializationOrDeadlockError(dbErr), dbErr
	}

	if err := tx.Commit(); err != nil {
		dbErr := MapSQLError(err)
		return IsSerializationOrDeadlockError(dbErr), dbErr
	}

	return false, nil
}
