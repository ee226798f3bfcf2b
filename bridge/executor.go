package bridge

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/querybridge/providers"
	"github.com/tomyedwab/querybridge/value"
)

// execQueryer is satisfied by both *sqlx.Conn and *sqlx.Tx.
type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// command is a bound statement ready to run on a connection or transaction.
type command struct {
	target    execQueryer
	query     string
	args      []any
	normalize providers.Normalizer
}

func (c *command) exec(ctx context.Context) (sql.Result, error) {
	return c.target.ExecContext(ctx, c.query, c.args...)
}

func (c *command) rows(ctx context.Context) (*sqlx.Rows, error) {
	return c.target.QueryxContext(ctx, c.query, c.args...)
}

func (c *command) convert(dbType string, native any) value.Value {
	return value.Convert(c.normalize(dbType, native))
}

// columnTypes returns the database type name of each result column.
func columnTypes(rows *sqlx.Rows) ([]string, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}
	names := make([]string, len(cols))
	for i, ct := range cols {
		names[i] = ct.DatabaseTypeName()
	}
	return names, nil
}

// statement identifies what to run and where.
type statement struct {
	provider         string
	connectionString string
	query            string
	params           value.Params
	txHandle         string
}

// runInContext runs fn against either the open transaction named by
// st.txHandle or a connection opened just for this call. The connection
// is closed before returning; a transaction's connection stays open. Any
// failure, including a panic in the driver, is returned as an *Error
// together with onError.
func runInContext[T any](ctx context.Context, b *Bridge, st statement, fn func(context.Context, *command) (T, error), onError T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = onError
			err = NewNativeError("execution panicked", fmt.Errorf("%v", r))
		}
	}()

	if st.txHandle != NoTransaction {
		tx, ok := b.txs.Lookup(st.txHandle)
		if !ok {
			return onError, NewInvalidHandleError(st.txHandle, nil)
		}
		conn := tx.Connection()
		query, args, err := Bind(conn.BindType(), st.query, st.params)
		if err != nil {
			return onError, NewNativeError("failed to bind parameters", err)
		}
		cmd := &command{target: tx.Tx, query: query, args: args, normalize: conn.Normalize}
		res, err := fn(ctx, cmd)
		if err != nil {
			return onError, NewNativeError("execution failed", err)
		}
		return res, nil
	}

	factory, ok := b.providers.TryGetFactory(st.provider)
	if !ok {
		return onError, NewProviderNotFoundError(st.provider)
	}

	conn, err := factory.Open(ctx, st.connectionString)
	if err != nil {
		return onError, NewNativeError("failed to open connection", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			b.logger.Warn("Failed to close connection", "provider", st.provider, "error", cerr)
		}
	}()

	query, args, err := Bind(conn.BindType(), st.query, st.params)
	if err != nil {
		return onError, NewNativeError("failed to bind parameters", err)
	}
	cmd := &command{target: conn.Conn, query: query, args: args, normalize: conn.Normalize}
	res, err := fn(ctx, cmd)
	if err != nil {
		return onError, NewNativeError("execution failed", err)
	}
	return res, nil
}

func executeStrategy(ctx context.Context, cmd *command) (int64, error) {
	res, err := cmd.exec(ctx)
	if err != nil {
		return -1, err
	}
	return res.RowsAffected()
}

// scalarStrategy returns the first column of the first row, or Null when
// the statement produces no rows.
func scalarStrategy(ctx context.Context, cmd *command) (value.Value, error) {
	rows, err := cmd.rows(ctx)
	if err != nil {
		return value.Null(), err
	}
	defer rows.Close()

	if !rows.Next() {
		return value.Null(), rows.Err()
	}
	dbTypes, err := columnTypes(rows)
	if err != nil {
		return value.Null(), err
	}
	cells, err := rows.SliceScan()
	if err != nil {
		return value.Null(), err
	}
	if len(cells) == 0 {
		return value.Null(), nil
	}
	return cmd.convert(dbTypes[0], cells[0]), nil
}

func queryStrategy(ctx context.Context, cmd *command) (value.RowSet, error) {
	rows, err := cmd.rows(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	dbTypes, err := columnTypes(rows)
	if err != nil {
		return nil, err
	}

	results := value.RowSet{}
	for rows.Next() {
		cells, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(value.Row, len(columns))
		for i, name := range columns {
			row[i] = value.Field{Name: name, Value: cmd.convert(dbTypes[i], cells[i])}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}
