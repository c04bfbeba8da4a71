// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/pkg/errutil"
)

// errorBody is the envelope every failure response uses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// userJSON is the public projection of a user. The password digest is
// never part of it.
type userJSON struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

func renderUser(u *auth.User) userJSON {
	return userJSON{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// taskJSON is the public projection of a task. DueDate serializes as
// null when unset.
type taskJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	UserID      string  `json:"user_id"`
}

func renderTask(t *task.Task) taskJSON {
	out := taskJSON{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status.String(),
		Priority:    t.Priority.String(),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
		UserID:      t.UserID.String(),
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC().Format(time.RFC3339)
		out.DueDate = &due
	}
	return out
}

func renderTasks(tasks []*task.Task) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, renderTask(t))
	}
	return out
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

// writeEnvelope renders the error envelope.
func writeEnvelope(w http.ResponseWriter, status int, category, message string) {
	writeJSON(w, status, errorBody{Error: category, Message: message})
}

// errNoBody marks a request that carried no JSON payload at all.
var errNoBody = errors.New("no request body")

// decodeJSON decodes the request body into v. An empty body yields
// errNoBody so callers can report it distinctly from malformed JSON.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errNoBody
	}
	return err
}

// writeBodyError renders the envelope for a decodeJSON failure.
func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNoBody) {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "No data provided")
		return
	}
	writeEnvelope(w, http.StatusBadRequest, "Bad Request", "The request was invalid or cannot be processed")
}

// validationCodes are the domain error codes that surface as 400 with
// the error's own message.
var validationCodes = map[string]bool{
	"AUTH_MISSING_FIELD":    true,
	"TASK_MISSING_FIELD":    true,
	"TASK_INVALID_STATUS":   true,
	"TASK_INVALID_PRIORITY": true,
}

// writeError maps a domain error onto the right status code and
// envelope. Anything unrecognized is a 500 with a generic message so
// internals never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrConflict):
		writeEnvelope(w, http.StatusConflict, "Conflict", conflictMessage(err))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", "Invalid email or password")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", "Login required to access this resource")
	default:
		if oopsErr, ok := oops.AsOops(err); ok && validationCodes[oopsErr.Code()] {
			writeEnvelope(w, http.StatusBadRequest, "Bad Request", capitalize(oopsErr.Error()))
			return
		}
		errutil.LogError(s.logger, "request failed", err)
		writeEnvelope(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred on the server")
	}
}

// writeTaskError handles the per-task failure modes that need the id in
// their message, deferring everything else to writeError.
func (s *Server) writeTaskError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeEnvelope(w, http.StatusNotFound, "Not Found", fmt.Sprintf("Task with id %s not found", id))
	case errors.Is(err, task.ErrForbidden):
		writeEnvelope(w, http.StatusForbidden, "Forbidden", "You do not have permission to access this task")
	default:
		s.writeError(w, err)
	}
}

// conflictMessage picks the register conflict message from the error's
// field context.
func conflictMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Context()["field"] {
		case "username":
			return "Username already exists"
		case "email":
			return "Email already exists"
		}
	}
	return "Resource already exists"
}

// capitalize upper-cases the first rune so domain error messages read
// as sentences in the envelope.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
