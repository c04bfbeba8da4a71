// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

// Package task contains the to-do item domain types and logic.
package task

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Status identifies a task's progress state.
type Status string

// Task statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid returns true if the status is one of the allowed values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority identifies a task's priority level.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// Valid returns true if the priority is one of the allowed values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// AllowedStatuses returns the allowed status values, comma-separated,
// for use in validation messages.
func AllowedStatuses() string {
	return strings.Join([]string{
		string(StatusPending), string(StatusInProgress), string(StatusCompleted),
	}, ", ")
}

// AllowedPriorities returns the allowed priority values, comma-separated,
// for use in validation messages.
func AllowedPriorities() string {
	return strings.Join([]string{
		string(PriorityLow), string(PriorityMedium), string(PriorityHigh),
	}, ", ")
}

// Task represents a to-do item owned by exactly one user.
// UserID is set at creation and never changes.
type Task struct {
	ID          ulid.ULID
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      ulid.ULID
}

// NewTask creates a validated Task bound to its owner.
// Status defaults to pending and priority to medium when empty.
func NewTask(ownerID ulid.ULID, title, description string, status Status, priority Priority, dueDate *time.Time) (*Task, error) {
	if ownerID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TASK_INVALID_OWNER").Errorf("owner ID cannot be zero")
	}
	if title == "" {
		return nil, oops.Code("TASK_MISSING_FIELD").
			With("field", "title").
			Errorf("title is required")
	}
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, oops.Code("TASK_INVALID_STATUS").
			With("allowed", AllowedStatuses()).
			Errorf("status must be one of: %s", AllowedStatuses())
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, oops.Code("TASK_INVALID_PRIORITY").
			With("allowed", AllowedPriorities()).
			Errorf("priority must be one of: %s", AllowedPriorities())
	}

	now := time.Now().UTC()
	return &Task{
		ID:          ulid.Make(),
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      ownerID,
	}, nil
}

// Update is a partial task mutation. Nil fields are left untouched.
type Update struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	DueDate     *time.Time
}

// Validate checks the enum fields of the update, if present.
func (u Update) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return oops.Code("TASK_INVALID_STATUS").
			With("allowed", AllowedStatuses()).
			Errorf("status must be one of: %s", AllowedStatuses())
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return oops.Code("TASK_INVALID_PRIORITY").
			With("allowed", AllowedPriorities()).
			Errorf("priority must be one of: %s", AllowedPriorities())
	}
	return nil
}

// Apply mutates only the fields present in the update and refreshes
// the task's UpdatedAt to now.
func (u Update) Apply(t *Task, now time.Time) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	t.UpdatedAt = now
}

// Repository manages task persistence.
type Repository interface {
	// Create stores a new task.
	Create(ctx context.Context, task *Task) error

	// Get retrieves a task by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id ulid.ULID) (*Task, error)

	// ListByUser returns all tasks owned by the user in insertion order.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*Task, error)

	// Update persists a modified task. Returns ErrNotFound if absent.
	Update(ctx context.Context, task *Task) error

	// Delete removes a task by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id ulid.ULID) error
}
