// Package transactions keeps open transactions addressable by opaque
// handles between calls.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/querybridge/providers"
)

// ErrUnknownHandle is returned when a handle does not name a live
// transaction.
var ErrUnknownHandle = errors.New("transaction not found or already closed")

// Tx is an open transaction together with the connection it runs on. The
// registry owns both until the transaction is committed or rolled back.
type Tx struct {
	*sqlx.Tx

	conn *providers.Connection
}

// Connection returns the connection the transaction runs on.
func (t *Tx) Connection() *providers.Connection {
	return t.conn
}

// Registry maps handles to open transactions. All map access goes through
// one mutex; native commit and rollback run after the entry is evicted.
type Registry struct {
	mu     sync.Mutex
	txs    map[string]*Tx
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		txs:    make(map[string]*Tx),
		logger: logger.With("component", "transactions"),
	}
}

// Begin opens a connection through factory, starts a transaction on it and
// returns the handle that addresses it. The transaction is not bound to
// ctx's cancellation because it outlives this call.
func (r *Registry) Begin(ctx context.Context, factory providers.Factory, connectionString string) (string, error) {
	conn, err := factory.Open(ctx, connectionString)
	if err != nil {
		return "", err
	}

	var tx *sqlx.Tx
	panicked, err := callDriver("begin transaction", func() error {
		var err error
		tx, err = conn.BeginTxx(context.WithoutCancel(ctx), nil)
		return err
	})
	if err != nil {
		if panicked {
			conn.Discard()
		} else {
			conn.Close()
		}
		return "", err
	}

	handle := uuid.NewString()

	r.mu.Lock()
	r.txs[handle] = &Tx{Tx: tx, conn: conn}
	r.mu.Unlock()

	r.logger.Debug("Transaction started", "tx_handle", handle)
	return handle, nil
}

// Lookup returns the transaction addressed by handle.
func (r *Registry) Lookup(handle string) (*Tx, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[handle]
	return tx, ok
}

// Commit commits the transaction addressed by handle. The handle is
// consumed and the connection closed whether or not the commit succeeds.
func (r *Registry) Commit(handle string) error {
	tx, ok := r.take(handle)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	return r.finish(handle, tx, "commit", tx.Commit)
}

// Rollback aborts the transaction addressed by handle. Like Commit, it
// always consumes the handle.
func (r *Registry) Rollback(handle string) error {
	tx, ok := r.take(handle)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	return r.finish(handle, tx, "rollback", tx.Rollback)
}

// Len reports how many transactions are open.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

// CloseAll rolls back every open transaction and closes its connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := r.txs
	r.txs = make(map[string]*Tx)
	r.mu.Unlock()

	for handle, tx := range open {
		if err := r.finish(handle, tx, "rollback", tx.Rollback); err != nil {
			r.logger.Warn("Rollback during shutdown failed", "tx_handle", handle, "error", err)
		}
	}
}

func (r *Registry) take(handle string) (*Tx, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[handle]
	if ok {
		delete(r.txs, handle)
	}
	return tx, ok
}

// finish runs the commit or rollback fn for an evicted transaction and
// releases its connection.
func (r *Registry) finish(handle string, tx *Tx, op string, fn func() error) error {
	panicked, err := callDriver(op, fn)
	if panicked {
		r.discard(handle, tx)
	} else {
		r.release(handle, tx)
	}
	return err
}

// callDriver runs fn and turns a panic inside it into an error. After a
// panic database/sql may still hold the connection, so callers must
// discard it instead of closing it.
func callDriver(op string, fn func() error) (panicked bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			panicked = true
			err = fmt.Errorf("%s panicked: %v", op, p)
		}
	}()
	if err := fn(); err != nil {
		return false, fmt.Errorf("%s failed: %w", op, err)
	}
	return false, nil
}

func (r *Registry) discard(handle string, tx *Tx) {
	r.logger.Warn("Discarding transaction connection after driver panic", "tx_handle", handle)
	if err := tx.conn.Discard(); err != nil {
		r.logger.Warn("Failed to discard transaction connection", "tx_handle", handle, "error", err)
	}
}

func (r *Registry) release(handle string, tx *Tx) {
	if err := tx.conn.Close(); err != nil {
		r.logger.Warn("Failed to close transaction connection", "tx_handle", handle, "error", err)
	}
}
