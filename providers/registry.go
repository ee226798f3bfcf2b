// Package providers maps provider names to the factories that open
// connections for them.
package providers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Factory opens unpooled connections for one database provider.
type Factory interface {
	Open(ctx context.Context, connectionString string) (*Connection, error)
}

// Normalizer maps a driver-specific result value to a type the value
// converter understands. dbType is the column's database type name as the
// driver reports it, and may be empty.
type Normalizer func(dbType string, v any) any

// Connection is a single database connection opened by a Factory. It owns
// its handle pool and closing it releases everything.
type Connection struct {
	*sqlx.Conn

	db        *sqlx.DB
	bindType  int
	normalize Normalizer
}

// BindType is the sqlx bind type used to place named parameters in
// statements run on this connection.
func (c *Connection) BindType() int {
	return c.bindType
}

// Normalize maps a driver-specific value read from a column of type dbType.
// Values the provider does not recognize are returned as is.
func (c *Connection) Normalize(dbType string, v any) any {
	if c.normalize == nil {
		return v
	}
	return c.normalize(dbType, v)
}

// Close closes the connection and the handle it was opened from.
func (c *Connection) Close() error {
	connErr := c.Conn.Close()
	dbErr := c.db.Close()
	if connErr != nil {
		return fmt.Errorf("failed to close connection: %w", connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database handle: %w", dbErr)
	}
	return nil
}

// Discard closes only the handle the connection was opened from. It is for
// connections a driver panic left checked out, which Close would wait on.
func (c *Connection) Discard() error {
	return c.db.Close()
}

// SQLDriver is a Factory backed by a registered database/sql driver.
type SQLDriver struct {
	DriverName string
	// BindType is an sqlx bind type. sqlx.NAMED passes parameters to the
	// driver as sql.NamedArg; any other type rewrites :name placeholders.
	BindType  int
	Normalize Normalizer
}

// Open opens a dedicated connection. Each call creates its own handle
// limited to a single connection, so nothing is shared between calls.
func (d *SQLDriver) Open(ctx context.Context, connectionString string) (*Connection, error) {
	db, err := sqlx.Open(d.DriverName, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.DriverName, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.DriverName, err)
	}
	return &Connection{
		Conn:      conn,
		db:        db,
		bindType:  d.BindType,
		normalize: d.Normalize,
	}, nil
}

// DriverOption customizes a driver registered through RegisterDriver.
type DriverOption func(*SQLDriver)

// WithBindType overrides the bind type inferred from the driver name.
func WithBindType(bindType int) DriverOption {
	return func(d *SQLDriver) {
		d.BindType = bindType
	}
}

// WithNormalizer installs a hook that maps driver-specific result values.
func WithNormalizer(fn Normalizer) DriverOption {
	return func(d *SQLDriver) {
		d.Normalize = fn
	}
}

// Registry is a concurrency-safe table of provider name to Factory. Entries
// are never removed.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "providers"),
	}
}

// Register installs factory under name. Registering a name again replaces
// the previous factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// RegisterDriver installs the database/sql driver called locator under
// name. Registration is best effort: if the driver is not compiled into the
// binary the failure is logged and false is returned.
func (r *Registry) RegisterDriver(name, locator string, opts ...DriverOption) bool {
	if name == "" {
		r.logger.Error("Failed to register provider", "locator", locator, "error", "empty provider name")
		return false
	}
	if !slices.Contains(sql.Drivers(), locator) {
		r.logger.Warn("Failed to register provider", "provider", name, "locator", locator, "error", "driver is not registered with database/sql")
		return false
	}

	d := &SQLDriver{
		DriverName: locator,
		BindType:   defaultBindType(locator),
	}
	for _, opt := range opts {
		opt(d)
	}
	r.Register(name, d)
	r.logger.Debug("Registered provider", "provider", name, "locator", locator)
	return true
}

// TryGetFactory looks up the factory registered under name.
func (r *Registry) TryGetFactory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SQLite drivers resolve :name, @name and $name placeholders themselves.
var nativeNamedDrivers = []string{"sqlite3", "sqlite"}

func defaultBindType(locator string) int {
	if slices.Contains(nativeNamedDrivers, locator) {
		return sqlx.NAMED
	}
	return sqlx.BindType(locator)
}
