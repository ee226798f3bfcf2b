// Package client calls a bridge over any byte transport that carries the
// JSON protocol: HTTP, or the query_bridge host function from inside a
// WebAssembly guest.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tomyedwab/querybridge/bridge/types"
	"github.com/tomyedwab/querybridge/value"
)

// Transport sends one encoded request and returns the encoded response.
type Transport func(ctx context.Context, payload []byte) ([]byte, error)

// RemoteError is a failure reported by the bridge.
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Client issues protocol requests over a Transport.
type Client struct {
	transport Transport
}

// New creates a Client.
func New(transport Transport) *Client {
	return &Client{transport: transport}
}

func call[T any](ctx context.Context, c *Client, req types.Request) (T, error) {
	var resp T
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("failed to marshal %s request: %w", req.Command, err)
	}

	raw, err := c.transport(ctx, payload)
	if err != nil {
		return resp, fmt.Errorf("%s request failed: %w", req.Command, err)
	}

	var status types.ErrorResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return resp, fmt.Errorf("failed to unmarshal %s response: %w", req.Command, err)
	}
	if status.Failed() {
		return resp, &RemoteError{Type: status.ErrorType, Message: status.Error}
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("failed to unmarshal %s response: %w", req.Command, err)
	}
	return resp, nil
}

// Execute runs a non-query statement and returns the rows affected. An
// empty txHandle runs it on its own connection.
func (c *Client) Execute(ctx context.Context, provider, connectionString, sql string, params value.Params, txHandle string) (int64, error) {
	resp, err := call[types.ExecuteResponse](ctx, c, types.Request{
		Command:          types.CommandExecute,
		Provider:         provider,
		ConnectionString: connectionString,
		SQL:              sql,
		Params:           params,
		TxHandle:         txHandle,
	})
	if err != nil {
		return -1, err
	}
	return resp.RowsAffected, nil
}

// Scalar returns the first column of the first row.
func (c *Client) Scalar(ctx context.Context, provider, connectionString, sql string, params value.Params, txHandle string) (value.Value, error) {
	resp, err := call[types.ScalarResponse](ctx, c, types.Request{
		Command:          types.CommandScalar,
		Provider:         provider,
		ConnectionString: connectionString,
		SQL:              sql,
		Params:           params,
		TxHandle:         txHandle,
	})
	if err != nil {
		return value.Null(), err
	}
	return resp.Value, nil
}

// Query returns every row.
func (c *Client) Query(ctx context.Context, provider, connectionString, sql string, params value.Params, txHandle string) (value.RowSet, error) {
	resp, err := call[types.QueryResponse](ctx, c, types.Request{
		Command:          types.CommandQuery,
		Provider:         provider,
		ConnectionString: connectionString,
		SQL:              sql,
		Params:           params,
		TxHandle:         txHandle,
	})
	if err != nil {
		return value.RowSet{}, err
	}
	if resp.Rows == nil {
		return value.RowSet{}, nil
	}
	return resp.Rows, nil
}

// Begin starts a transaction and returns its handle.
func (c *Client) Begin(ctx context.Context, provider, connectionString string) (string, error) {
	resp, err := call[types.TransactionResponse](ctx, c, types.Request{
		Command:          types.CommandBegin,
		Provider:         provider,
		ConnectionString: connectionString,
	})
	if err != nil {
		return "", err
	}
	return resp.TxHandle, nil
}

// Commit commits the transaction. The handle is released either way.
func (c *Client) Commit(ctx context.Context, txHandle string) error {
	_, err := call[types.TransactionResponse](ctx, c, types.Request{Command: types.CommandCommit, TxHandle: txHandle})
	return err
}

// Rollback aborts the transaction.
func (c *Client) Rollback(ctx context.Context, txHandle string) error {
	_, err := call[types.TransactionResponse](ctx, c, types.Request{Command: types.CommandRollback, TxHandle: txHandle})
	return err
}

// WithTransaction runs fn inside a transaction, committing when fn returns
// nil and rolling back otherwise.
func (c *Client) WithTransaction(ctx context.Context, provider, connectionString string, fn func(txHandle string) error) error {
	handle, err := c.Begin(ctx, provider, connectionString)
	if err != nil {
		return err
	}
	if err := fn(handle); err != nil {
		if rbErr := c.Rollback(ctx, handle); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return c.Commit(ctx, handle)
}

// HTTPTransport posts requests to the /v1/bridge route under baseURL. A
// non-empty token is sent as a bearer token. A nil httpClient uses
// http.DefaultClient.
func HTTPTransport(baseURL, token string, httpClient *http.Client) Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := strings.TrimSuffix(baseURL, "/") + "/v1/bridge"

	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return body, nil
	}
}
