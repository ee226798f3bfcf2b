//go:build !noduckdb

package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomyedwab/querybridge/providers"
	"github.com/tomyedwab/querybridge/value"
)

func TestDuckDBCastsAndLiteralColons(t *testing.T) {
	b := New(Config{Providers: providers.Default()})
	t.Cleanup(b.Close)

	v := b.Scalar("duckdb", "", "SELECT :id::VARCHAR", value.Params{"id": value.Int(42)}, NoTransaction)
	assert.Equal(t, value.String("42"), v)

	v = b.Scalar("duckdb", "", "SELECT '12:30' || :s", value.Params{"s": value.String("!")}, NoTransaction)
	assert.Equal(t, value.String("12:30!"), v)
}
