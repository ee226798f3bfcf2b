// Package types holds the JSON request and response bodies of the bridge
// protocol, shared by the host, the HTTP transport and the clients.
package types

import "github.com/tomyedwab/querybridge/value"

// Protocol commands.
const (
	CommandExecute  = "execute"
	CommandScalar   = "scalar"
	CommandQuery    = "query"
	CommandBegin    = "begin"
	CommandCommit   = "commit"
	CommandRollback = "rollback"
)

// Request is a single protocol call.
type Request struct {
	Command          string       `json:"command"`
	Provider         string       `json:"provider,omitempty"`
	ConnectionString string       `json:"connection_string,omitempty"`
	SQL              string       `json:"sql,omitempty"`
	Params           value.Params `json:"params,omitempty"`
	TxHandle         string       `json:"tx_handle,omitempty"`
}

// ErrorResponse is embedded in every response. ErrorType is one of the
// bridge error type names ("provider_not_found", "invalid_handle", ...).
type ErrorResponse struct {
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// Failed reports whether the response carries an error.
func (e ErrorResponse) Failed() bool {
	return e.Error != ""
}

// ExecuteResponse answers "execute". RowsAffected is -1 on failure.
type ExecuteResponse struct {
	RowsAffected int64 `json:"rows_affected"`
	ErrorResponse
}

// ScalarResponse answers "scalar". Value is null on failure or when the
// query produced no rows.
type ScalarResponse struct {
	Value value.Value `json:"value"`
	ErrorResponse
}

// QueryResponse answers "query". Rows is empty on failure.
type QueryResponse struct {
	Rows value.RowSet `json:"rows"`
	ErrorResponse
}

// TransactionResponse answers "begin", "commit" and "rollback".
type TransactionResponse struct {
	TxHandle string `json:"tx_handle,omitempty"`
	OK       bool   `json:"ok"`
	ErrorResponse
}
