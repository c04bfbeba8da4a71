// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package task

import "errors"

// Sentinel errors for callers to dispatch on with errors.Is.
var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a task exists but is owned by a
	// different user than the one acting on it.
	ErrForbidden = errors.New("forbidden")
)
