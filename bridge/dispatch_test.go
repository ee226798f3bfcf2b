package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/querybridge/bridge/types"
	"github.com/tomyedwab/querybridge/value"
)

func dispatch[T any](t *testing.T, b *Bridge, req types.Request) T {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	raw, err := b.HandleRequest(context.Background(), payload)
	require.NoError(t, err)
	var resp T
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	return resp
}

func TestHandleRequestRoundTrip(t *testing.T) {
	b, dbPath := setupTestBridge(t)

	begin := dispatch[types.TransactionResponse](t, b, types.Request{
		Command:          types.CommandBegin,
		Provider:         "sqlite3",
		ConnectionString: dbPath,
	})
	require.False(t, begin.Failed(), begin.Error)
	require.True(t, begin.OK)
	require.NotEmpty(t, begin.TxHandle)

	exec := dispatch[types.ExecuteResponse](t, b, types.Request{
		Command:  types.CommandExecute,
		SQL:      "INSERT INTO people (id, name) VALUES (:id, :name)",
		Params:   value.Params{"id": value.Int(3), "name": value.String("cy")},
		TxHandle: begin.TxHandle,
	})
	assert.Equal(t, int64(1), exec.RowsAffected)

	commit := dispatch[types.TransactionResponse](t, b, types.Request{
		Command:  types.CommandCommit,
		TxHandle: begin.TxHandle,
	})
	assert.True(t, commit.OK)

	scalar := dispatch[types.ScalarResponse](t, b, types.Request{
		Command:          types.CommandScalar,
		Provider:         "sqlite3",
		ConnectionString: dbPath,
		SQL:              "SELECT name FROM people WHERE id = :id",
		Params:           value.Params{"id": value.Int(3)},
	})
	assert.Equal(t, value.String("cy"), scalar.Value)

	query := dispatch[types.QueryResponse](t, b, types.Request{
		Command:          types.CommandQuery,
		Provider:         "sqlite3",
		ConnectionString: dbPath,
		SQL:              "SELECT id, name FROM people ORDER BY id",
	})
	require.Len(t, query.Rows, 3)
	assert.Equal(t, []string{"id", "name"}, query.Rows[2].Columns())
	assert.Equal(t, value.Int(3), query.Rows[2][0].Value)
}

func TestHandleRequestBareParams(t *testing.T) {
	b, dbPath := setupTestBridge(t)

	payload := fmt.Sprintf(`{"command":"scalar","provider":"sqlite3","connection_string":%q,"sql":"SELECT :id","params":{"id":42}}`, dbPath)
	raw, err := b.HandleRequest(context.Background(), []byte(payload))
	require.NoError(t, err)

	var resp types.ScalarResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, value.Int(42), resp.Value)
}

func TestHandleRequestErrors(t *testing.T) {
	b, dbPath := setupTestBridge(t)

	exec := dispatch[types.ExecuteResponse](t, b, types.Request{
		Command:  types.CommandExecute,
		Provider: "missing",
		SQL:      "SELECT 1",
	})
	assert.Equal(t, int64(-1), exec.RowsAffected)
	assert.Equal(t, "provider_not_found", exec.ErrorType)

	query := dispatch[types.QueryResponse](t, b, types.Request{
		Command:          types.CommandQuery,
		Provider:         "sqlite3",
		ConnectionString: dbPath,
		SQL:              "SELECT * FROM nowhere",
	})
	assert.NotNil(t, query.Rows)
	assert.Empty(t, query.Rows)
	assert.Equal(t, "native", query.ErrorType)

	rollback := dispatch[types.TransactionResponse](t, b, types.Request{
		Command:  types.CommandRollback,
		TxHandle: "no-such-handle",
	})
	assert.False(t, rollback.OK)
	assert.Equal(t, "invalid_handle", rollback.ErrorType)

	unknown := dispatch[types.ErrorResponse](t, b, types.Request{Command: "vacuum"})
	assert.Equal(t, "unknown command: vacuum", unknown.Error)

	raw, err := b.HandleRequest(context.Background(), []byte("{not json"))
	require.NoError(t, err)
	var malformed types.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &malformed))
	assert.Contains(t, malformed.Error, "failed to unmarshal request")
}
