// Package httpapi serves the bridge operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tomyedwab/querybridge/bridge"
)

// Config controls the HTTP listener. An empty JWTSecret disables
// authentication.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	JWTSecret    []byte
}

// Server routes HTTP requests to a Bridge.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	config     Config
	bridge     *bridge.Bridge
	logger     *slog.Logger
}

// NewServer builds the router. A nil logger uses slog.Default().
func NewServer(b *bridge.Bridge, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		config: config,
		bridge: b,
		logger: logger.With("component", "httpapi"),
	}
	s.router.Use(gin.Recovery(), LogRequests(s.logger))
	s.setUpRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) setUpRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	if len(s.config.JWTSecret) > 0 {
		v1.Use(RequireToken(s.config.JWTSecret))
	}
	v1.POST("/bridge", s.handleProtocol)
	v1.POST("/execute", s.handleExecute)
	v1.POST("/scalar", s.handleScalar)
	v1.POST("/query", s.handleQuery)
	v1.POST("/transactions", s.handleBegin)
	v1.POST("/transactions/:handle/commit", s.handleCommit)
	v1.POST("/transactions/:handle/rollback", s.handleRollback)
}

// Handler returns the router, for use with httptest or another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Server is running", "addr", s.config.Addr, "auth", len(s.config.JWTSecret) > 0)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("Server shutdown completed")
	return nil
}
