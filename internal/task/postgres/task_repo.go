// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskdeck/taskdeck/internal/task"
)

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	pool poolIface
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool poolIface) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// Create stores a new task.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, due_date, created_at, updated_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		t.ID.String(),
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.DueDate,
		t.CreatedAt,
		t.UpdatedAt,
		t.UserID.String(),
	)
	if err != nil {
		return oops.Code("TASK_CREATE_FAILED").
			With("operation", "insert task").
			With("id", t.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves a task by ID.
func (r *TaskRepository) Get(ctx context.Context, id ulid.ULID) (*task.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, description, status, priority, due_date, created_at, updated_at, user_id
		FROM tasks
		WHERE id = $1
	`, id.String())

	t, err := scanTaskRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TASK_NOT_FOUND").
			With("id", id.String()).
			Wrap(task.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TASK_GET_FAILED").
			With("operation", "get task").
			With("id", id.String()).
			Wrap(err)
	}
	return t, nil
}

// ListByUser returns all tasks owned by the user.
// Ordering by id gives insertion order since ids are ULIDs.
func (r *TaskRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*task.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, status, priority, due_date, created_at, updated_at, user_id
		FROM tasks
		WHERE user_id = $1
		ORDER BY id
	`, userID.String())
	if err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").
			With("operation", "list tasks by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").
			With("operation", "iterate tasks").
			Wrap(err)
	}
	return tasks, nil
}

// Update persists a modified task. The owner column is never rewritten.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks SET
			title = $2,
			description = $3,
			status = $4,
			priority = $5,
			due_date = $6,
			updated_at = $7
		WHERE id = $1
	`,
		t.ID.String(),
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.DueDate,
		t.UpdatedAt,
	)
	if err != nil {
		return oops.Code("TASK_UPDATE_FAILED").
			With("operation", "update task").
			With("id", t.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TASK_NOT_FOUND").
			With("id", t.ID.String()).
			Wrap(task.ErrNotFound)
	}
	return nil
}

// Delete removes a task by ID.
func (r *TaskRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("TASK_DELETE_FAILED").
			With("operation", "delete task").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TASK_NOT_FOUND").
			With("id", id.String()).
			Wrap(task.ErrNotFound)
	}
	return nil
}

// scanTaskRow scans a single task from a row.
// Callers are responsible for handling pgx.ErrNoRows.
func scanTaskRow(row pgx.Row) (*task.Task, error) {
	var (
		idStr     string
		title     string
		desc      string
		status    string
		priority  string
		dueDate   *time.Time
		createdAt time.Time
		updatedAt time.Time
		userIDStr string
	)

	err := row.Scan(&idStr, &title, &desc, &status, &priority, &dueDate, &createdAt, &updatedAt, &userIDStr)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("TASK_SCAN_FAILED").
			With("operation", "scan task").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TASK_INVALID_ID").
			With("operation", "parse task id").
			With("id", idStr).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("TASK_INVALID_USER_ID").
			With("operation", "parse task user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &task.Task{
		ID:          id,
		Title:       title,
		Description: desc,
		Status:      task.Status(status),
		Priority:    task.Priority(priority),
		DueDate:     dueDate,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		UserID:      userID,
	}, nil
}

// Compile-time interface check.
var _ task.Repository = (*TaskRepository)(nil)
