// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package auth

import "errors"

// Sentinel errors for callers to dispatch on with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint would be violated.
	// Wrapping errors carry a "field" context naming the colliding field.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned on login failure. Unknown email and
	// wrong password produce this same error so callers cannot distinguish them.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when a session token is absent, unknown,
	// expired, or references a user that no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")
)
