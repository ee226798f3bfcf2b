package providers

import (
	"sync"

	_ "github.com/jackc/pgx/v4/stdlib" // pgx
	_ "github.com/lib/pq"              // postgres
	_ "github.com/mattn/go-sqlite3"    // sqlite3
	_ "modernc.org/sqlite"             // sqlite
)

type defaultDriver struct {
	name    string
	locator string
	opts    []DriverOption
}

// defaultDrivers are the providers compiled into this binary, registered
// under their database/sql driver names.
var defaultDrivers = []defaultDriver{
	{name: "sqlite3", locator: "sqlite3"},
	{name: "sqlite", locator: "sqlite"},
	{name: "pgx", locator: "pgx", opts: []DriverOption{WithNormalizer(normalizePostgres)}},
	{name: "postgres", locator: "postgres", opts: []DriverOption{WithNormalizer(normalizePostgres)}},
}

// RegisterDefaults registers every compiled-in provider on r and returns how
// many registrations succeeded. Failures are logged and skipped.
func RegisterDefaults(r *Registry) int {
	registered := 0
	for _, d := range defaultDrivers {
		if r.RegisterDriver(d.name, d.locator, d.opts...) {
			registered++
		}
	}
	return registered
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry. The compiled-in providers are
// registered the first time it is called.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(nil)
		RegisterDefaults(defaultRegistry)
	})
	return defaultRegistry
}
