// Package httpserver exposes the execution engine over HTTP.
//
// Routes:
//
//	GET  /healthz                  liveness, always "OK"
//	GET  /health                   session, workspace and version report
//	POST /tools/run_ipython_cell   evaluate a Python cell (gated)
//	POST /tools/run_shell_command  run a shell command (gated)
//	*    /mcp                      MCP streamable HTTP transport (gated, optional)
//
// Failures of executed code never change the HTTP status: they are reported
// through is_error in a 200 response. Only authentication failures and
// malformed requests produce other statuses.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/isdmx/execd/auth"
	"github.com/isdmx/execd/config"
	"github.com/isdmx/execd/mcpserver"
	"github.com/isdmx/execd/sandbox"
)

// Session is the interpreter session as seen by the HTTP layer
type Session interface {
	sandbox.CodeExecutor
	State() sandbox.SessionState
	Version() string
}

// Server is the HTTP server of the daemon
type Server struct {
	config  *config.Config
	logger  *zap.Logger
	gate    *auth.Gate
	session Session
	shell   sandbox.ShellExecutor
	mcp     *mcpserver.MCPServer
	router  chi.Router
	http    *http.Server

	listener net.Listener
	serveErr chan error
}

// New creates a new Server. mcp may be nil, in which case /mcp is not mounted.
func New(cfg *config.Config, logger *zap.Logger, gate *auth.Gate, session Session, shell sandbox.ShellExecutor, mcp *mcpserver.MCPServer) *Server {
	s := &Server{
		config:  cfg,
		logger:  logger.Named("http"),
		gate:    gate,
		session: session,
		shell:   shell,
		mcp:     mcp,
		router:  chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(s.gate, s.logger))

		r.Post("/tools/run_ipython_cell", s.handleRunIPythonCell)
		r.Post("/tools/run_shell_command", s.handleRunShellCommand)

		if s.mcp != nil {
			r.Handle("/mcp", s.mcp.Handler())
		}
	})
}

// Handler returns the root handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. A bind failure is
// returned synchronously.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}

	s.listener = listener
	s.serveErr = make(chan error, 1)
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("server starting",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("auth_enabled", s.gate.Enabled()),
		zap.Bool("mcp_enabled", s.mcp != nil))

	go func() {
		err := s.http.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
		s.serveErr <- err
	}()

	return nil
}

// Addr returns the bound listen address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully stops the server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.GetShutdownTimeout())
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	<-s.serveErr
	return nil
}
