// Package bridge runs SQL against named providers, either on a connection
// opened for the call or inside a transaction addressed by handle.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tomyedwab/querybridge/providers"
	"github.com/tomyedwab/querybridge/transactions"
	"github.com/tomyedwab/querybridge/value"
)

// NoTransaction is the handle value meaning "run outside any transaction".
const NoTransaction = ""

// Config holds the collaborators of a Bridge. Zero fields take defaults.
type Config struct {
	Providers    *providers.Registry
	Transactions *transactions.Registry
	Logger       *slog.Logger
}

// Bridge dispatches the six public operations.
type Bridge struct {
	providers *providers.Registry
	txs       *transactions.Registry
	logger    *slog.Logger
}

// New creates a Bridge from config.
func New(config Config) *Bridge {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		providers: config.Providers,
		txs:       config.Transactions,
		logger:    logger.With("component", "bridge"),
	}
	if b.providers == nil {
		b.providers = providers.Default()
	}
	if b.txs == nil {
		b.txs = transactions.NewRegistry(logger)
	}
	return b
}

// Providers returns the registry the bridge resolves provider names in.
func (b *Bridge) Providers() *providers.Registry {
	return b.providers
}

// OpenTransactions reports how many transaction handles are live.
func (b *Bridge) OpenTransactions() int {
	return b.txs.Len()
}

// Close rolls back every open transaction.
func (b *Bridge) Close() {
	b.txs.CloseAll()
}

// ExecuteContext runs a non-query statement and returns the number of rows
// affected.
func (b *Bridge) ExecuteContext(ctx context.Context, provider, connectionString, query string, params value.Params, txHandle string) (int64, error) {
	st := statement{provider, connectionString, query, params, txHandle}
	return runInContext(ctx, b, st, executeStrategy, -1)
}

// ScalarContext returns the first column of the first row, or Null when
// the query produces no rows.
func (b *Bridge) ScalarContext(ctx context.Context, provider, connectionString, query string, params value.Params, txHandle string) (value.Value, error) {
	st := statement{provider, connectionString, query, params, txHandle}
	return runInContext(ctx, b, st, scalarStrategy, value.Null())
}

// QueryContext returns every row the query produces, columns in driver
// order.
func (b *Bridge) QueryContext(ctx context.Context, provider, connectionString, query string, params value.Params, txHandle string) (value.RowSet, error) {
	st := statement{provider, connectionString, query, params, txHandle}
	return runInContext(ctx, b, st, queryStrategy, value.RowSet{})
}

// BeginTransactionContext opens a connection, starts a transaction on it
// and returns its handle.
func (b *Bridge) BeginTransactionContext(ctx context.Context, provider, connectionString string) (handle string, err error) {
	defer recoverNative("begin transaction panicked", &err)

	factory, ok := b.providers.TryGetFactory(provider)
	if !ok {
		return NoTransaction, NewProviderNotFoundError(provider)
	}
	handle, err = b.txs.Begin(ctx, factory, connectionString)
	if err != nil {
		return NoTransaction, NewNativeError("failed to begin transaction", err)
	}
	return handle, nil
}

// CommitTransactionContext commits the transaction and releases its handle.
// The handle is released even when the commit fails.
func (b *Bridge) CommitTransactionContext(_ context.Context, txHandle string) error {
	return b.closeTransaction(txHandle, b.txs.Commit)
}

// RollbackTransactionContext aborts the transaction and releases its handle.
func (b *Bridge) RollbackTransactionContext(_ context.Context, txHandle string) error {
	return b.closeTransaction(txHandle, b.txs.Rollback)
}

func (b *Bridge) closeTransaction(txHandle string, closeFn func(string) error) (err error) {
	defer recoverNative("close transaction panicked", &err)

	if err := closeFn(txHandle); err != nil {
		if errors.Is(err, transactions.ErrUnknownHandle) {
			return NewInvalidHandleError(txHandle, err)
		}
		return NewNativeError("failed to close transaction", err)
	}
	return nil
}

// recoverNative turns a panic escaping a driver into a native *Error.
func recoverNative(message string, err *error) {
	if r := recover(); r != nil {
		*err = NewNativeError(message, fmt.Errorf("%v", r))
	}
}

// Execute is ExecuteContext with failures logged and reported as -1.
func (b *Bridge) Execute(provider, connectionString, query string, params value.Params, txHandle string) int64 {
	n, err := b.ExecuteContext(context.Background(), provider, connectionString, query, params, txHandle)
	if err != nil {
		b.logFailure("execute", provider, txHandle, err)
	}
	return n
}

// Scalar is ScalarContext with failures logged and reported as Null.
func (b *Bridge) Scalar(provider, connectionString, query string, params value.Params, txHandle string) value.Value {
	v, err := b.ScalarContext(context.Background(), provider, connectionString, query, params, txHandle)
	if err != nil {
		b.logFailure("scalar", provider, txHandle, err)
	}
	return v
}

// Query is QueryContext with failures logged and reported as an empty
// RowSet.
func (b *Bridge) Query(provider, connectionString, query string, params value.Params, txHandle string) value.RowSet {
	rows, err := b.QueryContext(context.Background(), provider, connectionString, query, params, txHandle)
	if err != nil {
		b.logFailure("query", provider, txHandle, err)
	}
	return rows
}

// BeginTransaction returns a new handle, or "" on failure.
func (b *Bridge) BeginTransaction(provider, connectionString string) string {
	handle, err := b.BeginTransactionContext(context.Background(), provider, connectionString)
	if err != nil {
		b.logFailure("begin", provider, NoTransaction, err)
	}
	return handle
}

// CommitTransaction reports whether the commit succeeded.
func (b *Bridge) CommitTransaction(txHandle string) bool {
	if err := b.CommitTransactionContext(context.Background(), txHandle); err != nil {
		b.logFailure("commit", "", txHandle, err)
		return false
	}
	return true
}

// RollbackTransaction reports whether the rollback succeeded.
func (b *Bridge) RollbackTransaction(txHandle string) bool {
	if err := b.RollbackTransactionContext(context.Background(), txHandle); err != nil {
		b.logFailure("rollback", "", txHandle, err)
		return false
	}
	return true
}

func (b *Bridge) logFailure(op, provider, txHandle string, err error) {
	b.logger.Error("Operation failed",
		"op", op,
		"provider", provider,
		"tx_handle", txHandle,
		"error_type", TypeOf(err).String(),
		"error", err)
}

var (
	defaultBridge *Bridge
	defaultOnce   sync.Once
)

// Default returns the process-wide Bridge backed by providers.Default().
func Default() *Bridge {
	defaultOnce.Do(func() {
		defaultBridge = New(Config{})
	})
	return defaultBridge
}

// Execute runs a non-query statement on the default Bridge.
func Execute(provider, connectionString, query string, params value.Params, txHandle string) int64 {
	return Default().Execute(provider, connectionString, query, params, txHandle)
}

// Scalar runs a query on the default Bridge and returns its first cell.
func Scalar(provider, connectionString, query string, params value.Params, txHandle string) value.Value {
	return Default().Scalar(provider, connectionString, query, params, txHandle)
}

// Query runs a query on the default Bridge and returns every row.
func Query(provider, connectionString, query string, params value.Params, txHandle string) value.RowSet {
	return Default().Query(provider, connectionString, query, params, txHandle)
}

// BeginTransaction starts a transaction on the default Bridge.
func BeginTransaction(provider, connectionString string) string {
	return Default().BeginTransaction(provider, connectionString)
}

// CommitTransaction commits a transaction started on the default Bridge.
func CommitTransaction(txHandle string) bool {
	return Default().CommitTransaction(txHandle)
}

// RollbackTransaction aborts a transaction started on the default Bridge.
func RollbackTransaction(txHandle string) bool {
	return Default().RollbackTransaction(txHandle)
}
