// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth"
)

type ctxKey int

const userKey ctxKey = iota

func withUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user placed on the request
// context by the auth gate, or nil outside of it.
func UserFromContext(ctx context.Context) *auth.User {
	user, _ := ctx.Value(userKey).(*auth.User)
	return user
}

// requireUser resolves the session cookie before running next. A missing
// cookie and a stale session fail with distinct 401 messages, and a
// stale session additionally clears the cookie so the client stops
// presenting it.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", "Login required to access this resource")
			return
		}

		user, err := s.auth.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				s.clearSessionCookie(w)
				writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", "Invalid session. Please login again")
				return
			}
			s.writeError(w, err)
			return
		}

		next(w, r.WithContext(withUser(r.Context(), user)))
	}
}

// statusWriter records the status code a handler writes.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// observeMiddleware records request metrics and logs each request after
// it completes. Task ids are collapsed into the route label to keep
// metric cardinality bounded.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := routeLabel(r.URL.Path)

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			s.metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"remote", r.RemoteAddr)
	})
}

func routeLabel(path string) string {
	if strings.HasPrefix(path, "/api/tasks/") {
		return "/api/tasks/{id}"
	}
	return path
}

// recoverMiddleware converts handler panics into the 500 envelope.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic serving request",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec)
				writeEnvelope(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred on the server")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// envelopeWriter rewrites the plain-text 404 and 405 responses that
// http.ServeMux generates for unmatched routes into the JSON envelope.
// Responses that already carry a JSON body pass through untouched.
type envelopeWriter struct {
	http.ResponseWriter
	intercepted bool
}

func (w *envelopeWriter) WriteHeader(code int) {
	if (code == http.StatusNotFound || code == http.StatusMethodNotAllowed) &&
		!strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		w.intercepted = true

		message := "The requested resource was not found"
		if code == http.StatusMethodNotAllowed {
			message = "The HTTP method is not allowed for this endpoint"
		}
		category := http.StatusText(code)

		writeEnvelope(w.ResponseWriter, code, category, message)
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *envelopeWriter) Write(b []byte) (int, error) {
	if w.intercepted {
		// Swallow the mux's plain-text body; the envelope is already out.
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func envelopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&envelopeWriter{ResponseWriter: w}, r)
	})
}
