// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service validates task payloads and enforces ownership before
// delegating to the repository. Every operation takes the acting user's
// id; handlers never pass a client-supplied owner.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(repo Repository) (*Service, error) {
	return NewServiceWithLogger(repo, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("TASK_INVALID_DEPS").Errorf("task repository is required")
	}
	if logger == nil {
		return nil, oops.Code("TASK_INVALID_DEPS").Errorf("logger is required")
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Create validates the payload and stores a new task owned by actorID.
// Nothing is persisted when validation fails.
func (s *Service) Create(ctx context.Context, actorID ulid.ULID, title, description string, status Status, priority Priority, dueDate *time.Time) (*Task, error) {
	t, err := NewTask(actorID, title, description, status, priority, dueDate)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, oops.Code("TASK_CREATE_FAILED").
			With("operation", "create task").
			Wrap(err)
	}

	s.logger.Info("task created", "task_id", t.ID.String(), "user_id", actorID.String())
	return t, nil
}

// List returns all tasks owned by actorID.
func (s *Service) List(ctx context.Context, actorID ulid.ULID) ([]*Task, error) {
	tasks, err := s.repo.ListByUser(ctx, actorID)
	if err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").
			With("operation", "list tasks by user").
			Wrap(err)
	}
	return tasks, nil
}

// Get retrieves a task by id on behalf of actorID.
// Existence is checked before ownership: a missing task yields
// ErrNotFound, an existing foreign task yields ErrForbidden.
func (s *Service) Get(ctx context.Context, actorID, id ulid.ULID) (*Task, error) {
	return s.getOwned(ctx, actorID, id)
}

// Update applies a partial mutation to a task owned by actorID.
// Enum fields are re-validated when present; UpdatedAt is refreshed on
// any successful update.
func (s *Service) Update(ctx context.Context, actorID, id ulid.ULID, patch Update) (*Task, error) {
	t, err := s.getOwned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	patch.Apply(t, time.Now().UTC())

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, oops.Code("TASK_UPDATE_FAILED").
			With("operation", "update task").
			With("task_id", id.String()).
			Wrap(err)
	}
	return t, nil
}

// Delete permanently removes a task owned by actorID.
func (s *Service) Delete(ctx context.Context, actorID, id ulid.ULID) error {
	if _, err := s.getOwned(ctx, actorID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return oops.Code("TASK_DELETE_FAILED").
			With("operation", "delete task").
			With("task_id", id.String()).
			Wrap(err)
	}

	s.logger.Info("task deleted", "task_id", id.String(), "user_id", actorID.String())
	return nil
}

// getOwned fetches a task and enforces the existence-then-ownership order.
func (s *Service) getOwned(ctx context.Context, actorID, id ulid.ULID) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TASK_NOT_FOUND").
				With("task_id", id.String()).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code("TASK_GET_FAILED").
			With("operation", "get task").
			With("task_id", id.String()).
			Wrap(err)
	}

	if t.UserID.Compare(actorID) != 0 {
		return nil, oops.Code("TASK_FORBIDDEN").
			With("task_id", id.String()).
			Wrap(ErrForbidden)
	}

	return t, nil
}
