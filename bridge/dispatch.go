package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tomyedwab/querybridge/bridge/types"
	"github.com/tomyedwab/querybridge/value"
)

// HandleRequest decodes a protocol request, runs it and encodes the
// response. Operational failures are reported inside the response; the
// returned error is only set when the response itself cannot be encoded.
func (b *Bridge) HandleRequest(ctx context.Context, payload []byte) ([]byte, error) {
	var req types.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return marshalErrorResponse(fmt.Sprintf("failed to unmarshal request: %v", err), ErrorTypeUnknown)
	}

	var response any
	switch req.Command {
	case types.CommandExecute:
		n, err := b.ExecuteContext(ctx, req.Provider, req.ConnectionString, req.SQL, req.Params, req.TxHandle)
		response = types.ExecuteResponse{RowsAffected: n, ErrorResponse: b.errorResponse(req, err)}
	case types.CommandScalar:
		v, err := b.ScalarContext(ctx, req.Provider, req.ConnectionString, req.SQL, req.Params, req.TxHandle)
		response = types.ScalarResponse{Value: v, ErrorResponse: b.errorResponse(req, err)}
	case types.CommandQuery:
		rows, err := b.QueryContext(ctx, req.Provider, req.ConnectionString, req.SQL, req.Params, req.TxHandle)
		if rows == nil {
			rows = value.RowSet{}
		}
		response = types.QueryResponse{Rows: rows, ErrorResponse: b.errorResponse(req, err)}
	case types.CommandBegin:
		handle, err := b.BeginTransactionContext(ctx, req.Provider, req.ConnectionString)
		response = types.TransactionResponse{TxHandle: handle, OK: err == nil, ErrorResponse: b.errorResponse(req, err)}
	case types.CommandCommit:
		err := b.CommitTransactionContext(ctx, req.TxHandle)
		response = types.TransactionResponse{OK: err == nil, ErrorResponse: b.errorResponse(req, err)}
	case types.CommandRollback:
		err := b.RollbackTransactionContext(ctx, req.TxHandle)
		response = types.TransactionResponse{OK: err == nil, ErrorResponse: b.errorResponse(req, err)}
	default:
		return marshalErrorResponse(fmt.Sprintf("unknown command: %s", req.Command), ErrorTypeUnknown)
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return marshalErrorResponse(fmt.Sprintf("failed to marshal response: %v", err), ErrorTypeUnknown)
	}
	return payload, nil
}

func (b *Bridge) errorResponse(req types.Request, err error) types.ErrorResponse {
	if err == nil {
		return types.ErrorResponse{}
	}
	b.logFailure(req.Command, req.Provider, req.TxHandle, err)
	return types.ErrorResponse{Error: err.Error(), ErrorType: TypeOf(err).String()}
}

func marshalErrorResponse(errMsg string, errType ErrorType) ([]byte, error) {
	resp := types.ErrorResponse{Error: errMsg, ErrorType: errType.String()}
	payload, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"error":"failed to marshal error response"}`),
			fmt.Errorf("failed to marshal error response for '%s': %w", errMsg, err)
	}
	return payload, nil
}

// HandleRequest runs a protocol request on the default Bridge.
func HandleRequest(ctx context.Context, payload []byte) ([]byte, error) {
	return Default().HandleRequest(ctx, payload)
}
