//go:build !noduckdb

package providers

import (
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/jmoiron/sqlx"
)

func init() {
	defaultDrivers = append(defaultDrivers, defaultDriver{
		name:    "duckdb",
		locator: "duckdb",
		opts: []DriverOption{
			WithBindType(sqlx.DOLLAR),
			WithNormalizer(normalizeDuckDB),
		},
	})
}

// normalizeDuckDB narrows DECIMAL to float64 and turns INTERVAL into a
// duration, counting a month as 30 days.
func normalizeDuckDB(_ string, v any) any {
	switch d := v.(type) {
	case duckdb.Decimal:
		return d.Float64()
	case duckdb.Interval:
		days := int64(d.Months)*30 + int64(d.Days)
		return time.Duration(days)*24*time.Hour + time.Duration(d.Micros)*time.Microsecond
	}
	return v
}
