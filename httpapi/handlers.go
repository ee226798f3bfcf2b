package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tomyedwab/querybridge/bridge"
	"github.com/tomyedwab/querybridge/bridge/types"
	"github.com/tomyedwab/querybridge/value"
)

// statementRequest is the body of the execute, scalar and query routes.
// Provider and connection string are ignored when a handle is given.
type statementRequest struct {
	Provider         string       `json:"provider" binding:"required_without=TxHandle"`
	ConnectionString string       `json:"connection_string"`
	SQL              string       `json:"sql" binding:"required"`
	Params           value.Params `json:"params"`
	TxHandle         string       `json:"tx_handle"`
}

type beginRequest struct {
	Provider         string `json:"provider" binding:"required"`
	ConnectionString string `json:"connection_string"`
}

func errorResponse(err error) types.ErrorResponse {
	if err == nil {
		return types.ErrorResponse{}
	}
	return types.ErrorResponse{Error: err.Error(), ErrorType: bridge.TypeOf(err).String()}
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch bridge.TypeOf(err) {
	case bridge.ErrorTypeProviderNotFound, bridge.ErrorTypeInvalidHandle:
		return http.StatusNotFound
	case bridge.ErrorTypeNative:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
}

func (s *Server) handleProtocol(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}
	resp, err := s.bridge.HandleRequest(c.Request.Context(), payload)
	if err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
	c.Data(http.StatusOK, "application/json", resp)
}

func (s *Server) handleExecute(c *gin.Context) {
	var req statementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.bridge.ExecuteContext(c.Request.Context(), req.Provider, req.ConnectionString, req.SQL, req.Params, req.TxHandle)
	c.JSON(statusFor(err), types.ExecuteResponse{RowsAffected: n, ErrorResponse: errorResponse(err)})
}

func (s *Server) handleScalar(c *gin.Context) {
	var req statementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := s.bridge.ScalarContext(c.Request.Context(), req.Provider, req.ConnectionString, req.SQL, req.Params, req.TxHandle)
	c.JSON(statusFor(err), types.ScalarResponse{Value: v, ErrorResponse: errorResponse(err)})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req statementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rows, err := s.bridge.QueryContext(c.Request.Context(), req.Provider, req.ConnectionString, req.SQL, req.Params, req.TxHandle)
	if rows == nil {
		rows = value.RowSet{}
	}
	c.JSON(statusFor(err), types.QueryResponse{Rows: rows, ErrorResponse: errorResponse(err)})
}

func (s *Server) handleBegin(c *gin.Context) {
	var req beginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	handle, err := s.bridge.BeginTransactionContext(c.Request.Context(), req.Provider, req.ConnectionString)
	status := statusFor(err)
	if err == nil {
		status = http.StatusCreated
	}
	c.JSON(status, types.TransactionResponse{TxHandle: handle, OK: err == nil, ErrorResponse: errorResponse(err)})
}

func (s *Server) handleCommit(c *gin.Context) {
	err := s.bridge.CommitTransactionContext(c.Request.Context(), c.Param("handle"))
	c.JSON(statusFor(err), types.TransactionResponse{OK: err == nil, ErrorResponse: errorResponse(err)})
}

func (s *Server) handleRollback(c *gin.Context) {
	err := s.bridge.RollbackTransactionContext(c.Request.Context(), c.Param("handle"))
	c.JSON(statusFor(err), types.TransactionResponse{OK: err == nil, ErrorResponse: errorResponse(err)})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"providers":         s.bridge.Providers().Names(),
		"open_transactions": s.bridge.OpenTransactions(),
	})
}
