// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

// Package auth provides authentication primitives for Taskdeck.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their respective
// constructors:
//   - NewUser - creates a User with validated username, email, and password hash
//   - NewSession - creates a Session with validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Service
//
// Service coordinates registration, login, logout, and session resolution.
// It is created with NewService, which validates dependencies.
package auth
