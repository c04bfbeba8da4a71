// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

// Package api provides the HTTP/JSON surface of Taskdeck: registration,
// login, and per-user task management behind a cookie session.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/observability"
	"github.com/taskdeck/taskdeck/internal/task"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "taskdeck_session"

// Config holds the API server settings.
type Config struct {
	// Addr is the listen address in "host:port" format.
	Addr string

	// CookieSecure marks the session cookie Secure so browsers only send
	// it over HTTPS. Leave false for plain-HTTP development setups.
	CookieSecure bool
}

// Server serves the Taskdeck HTTP API.
type Server struct {
	cfg        Config
	auth       *auth.Service
	tasks      *task.Service
	metrics    *observability.Metrics
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a new API server. The metrics argument may be nil,
// in which case no request metrics are recorded.
func NewServer(cfg Config, authSvc *auth.Service, taskSvc *task.Service, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Code("API_INVALID_DEPS").Errorf("auth service is required")
	}
	if taskSvc == nil {
		return nil, oops.Code("API_INVALID_DEPS").Errorf("task service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		auth:    authSvc,
		tasks:   taskSvc,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Handler returns the fully assembled HTTP handler, routes and
// middleware included. Exposed so tests can drive the API through
// httptest without opening a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.requireUser(s.handleMe))

	mux.HandleFunc("POST /api/tasks", s.requireUser(s.handleCreateTask))
	mux.HandleFunc("GET /api/tasks", s.requireUser(s.handleListTasks))
	mux.HandleFunc("GET /api/tasks/{id}", s.requireUser(s.handleGetTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.requireUser(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.requireUser(s.handleDeleteTask))

	// Outermost first: recover from panics, observe the final status,
	// then rewrite the mux's plain-text 404/405 responses into the
	// JSON envelope every other response uses.
	return s.recoverMiddleware(s.observeMiddleware(envelopeMiddleware(mux)))
}

// Start begins serving the API.
// It returns an error channel that will receive any errors from the HTTP
// server after it starts. The channel is closed when the server stops
// gracefully. Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server, letting in-flight requests
// finish until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
