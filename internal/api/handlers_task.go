// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskdeck/taskdeck/internal/task"
)

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

// updateTaskRequest distinguishes absent keys from explicit values via
// pointer fields so a partial payload only touches what it names.
type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	user := UserFromContext(r.Context())
	created, err := s.tasks.Create(r.Context(), user.ID,
		req.Title, req.Description,
		task.Status(req.Status), task.Priority(req.Priority),
		req.DueDate)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, renderTask(created))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	tasks, err := s.tasks.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, renderTasks(tasks))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	rawID := r.PathValue("id")
	id, err := ulid.Parse(rawID)
	if err != nil {
		s.writeTaskError(w, rawID, task.ErrNotFound)
		return
	}

	user := UserFromContext(r.Context())
	found, err := s.tasks.Get(r.Context(), user.ID, id)
	if err != nil {
		s.writeTaskError(w, rawID, err)
		return
	}

	writeJSON(w, http.StatusOK, renderTask(found))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	rawID := r.PathValue("id")
	id, err := ulid.Parse(rawID)
	if err != nil {
		s.writeTaskError(w, rawID, task.ErrNotFound)
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if req == (updateTaskRequest{}) {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "No data provided")
		return
	}

	patch := task.Update{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := task.Status(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := task.Priority(*req.Priority)
		patch.Priority = &priority
	}

	user := UserFromContext(r.Context())
	updated, err := s.tasks.Update(r.Context(), user.ID, id, patch)
	if err != nil {
		s.writeTaskError(w, rawID, err)
		return
	}

	writeJSON(w, http.StatusOK, renderTask(updated))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	rawID := r.PathValue("id")
	id, err := ulid.Parse(rawID)
	if err != nil {
		s.writeTaskError(w, rawID, task.ErrNotFound)
		return
	}

	user := UserFromContext(r.Context())
	if err := s.tasks.Delete(r.Context(), user.ID, id); err != nil {
		s.writeTaskError(w, rawID, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Task %s deleted successfully", rawID),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to Task Management API",
		"status":  "running",
		"version": "1.0.0",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
