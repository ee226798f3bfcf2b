package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDriverUnknownLocator(t *testing.T) {
	r := NewRegistry(nil)

	ok := r.RegisterDriver("ghost", "no-such-driver")
	assert.False(t, ok)

	_, found := r.TryGetFactory("ghost")
	assert.False(t, found)
	assert.Empty(t, r.Names())
}

func TestRegisterDriverEmptyName(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.RegisterDriver("", "sqlite3"))
}

func TestRegisterDriverOpensConnection(t *testing.T) {
	r := NewRegistry(nil)
	require.True(t, r.RegisterDriver("local", "sqlite3"))

	factory, found := r.TryGetFactory("local")
	require.True(t, found)

	dbPath := filepath.Join(t.TempDir(), "providers.db")
	conn, err := factory.Open(context.Background(), dbPath)
	require.NoError(t, err)

	assert.Equal(t, sqlx.NAMED, conn.BindType())

	var n int
	require.NoError(t, conn.GetContext(context.Background(), &n, "SELECT 1"))
	assert.Equal(t, 1, n)

	require.NoError(t, conn.Close())
}

func TestRegisterDriverOptions(t *testing.T) {
	r := NewRegistry(nil)
	tagged := func(dbType string, v any) any {
		if s, ok := v.(string); ok {
			return dbType + ":" + s
		}
		return v
	}
	require.True(t, r.RegisterDriver("custom", "sqlite3", WithBindType(sqlx.QUESTION), WithNormalizer(tagged)))

	factory, _ := r.TryGetFactory("custom")
	d, ok := factory.(*SQLDriver)
	require.True(t, ok)
	assert.Equal(t, sqlx.QUESTION, d.BindType)
	assert.Equal(t, "TEXT:hey", d.Normalize("TEXT", "hey"))
	assert.Equal(t, 7, d.Normalize("INTEGER", 7))
}

func TestRegisterReplacesExistingEntry(t *testing.T) {
	r := NewRegistry(nil)
	first := &SQLDriver{DriverName: "sqlite3"}
	second := &SQLDriver{DriverName: "sqlite"}

	r.Register("db", first)
	r.Register("db", second)

	got, found := r.TryGetFactory("db")
	require.True(t, found)
	assert.Same(t, second, got)
	assert.Equal(t, []string{"db"}, r.Names())
}

func TestOpenFailureLeavesNothingOpen(t *testing.T) {
	d := &SQLDriver{DriverName: "sqlite3"}
	_, err := d.Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	assert.Error(t, err)
}

func TestDefaultBindTypes(t *testing.T) {
	assert.Equal(t, sqlx.NAMED, defaultBindType("sqlite3"))
	assert.Equal(t, sqlx.NAMED, defaultBindType("sqlite"))
	assert.Equal(t, sqlx.DOLLAR, defaultBindType("pgx"))
	assert.Equal(t, sqlx.DOLLAR, defaultBindType("postgres"))
	assert.Equal(t, sqlx.UNKNOWN, defaultBindType("unheard-of"))
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Same(t, r, Default())

	names := r.Names()
	for _, want := range []string{"sqlite3", "sqlite", "pgx", "postgres"} {
		assert.Contains(t, names, want)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("p%d", i), &SQLDriver{DriverName: "sqlite3"})
		}(i)
		go func(i int) {
			defer wg.Done()
			r.TryGetFactory(fmt.Sprintf("p%d", i))
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.Names(), 32)
}
