// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Service provides registration, login, logout, and session resolution.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new account. Fields are checked in username, email,
// password order and the first missing one is reported. Username collisions
// are reported before email collisions.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	if username == "" {
		return nil, oops.Code("AUTH_MISSING_FIELD").
			With("field", "username").
			Errorf("username is required")
	}
	if email == "" {
		return nil, oops.Code("AUTH_MISSING_FIELD").
			With("field", "email").
			Errorf("email is required")
	}
	if password == "" {
		return nil, oops.Code("AUTH_MISSING_FIELD").
			With("field", "password").
			Errorf("password is required")
	}

	// Username is probed before email so a double collision reports username.
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, oops.Code("AUTH_CONFLICT").
			With("field", "username").
			Wrap(ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code("AUTH_CONFLICT").
			With("field", "email").
			Wrap(ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The probes above race with concurrent registrations; the unique
		// constraints are authoritative and surface here as ErrConflict.
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.Info("user registered", "user_id", user.ID.String(), "username", user.Username)
	return user, nil
}

// Login authenticates a user by email and creates a session.
// Returns the user and the plaintext session token.
// Unknown email and wrong password fail identically, and password
// verification runs in both cases to keep response time consistent.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	if email == "" {
		return nil, "", oops.Code("AUTH_MISSING_FIELD").
			With("field", "email").
			Errorf("email is required")
	}
	if password == "" {
		return nil, "", oops.Code("AUTH_MISSING_FIELD").
			With("field", "password").
			Errorf("password is required")
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// For dummy hash verification errors, just treat as invalid
		if !userExists {
			return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If user doesn't exist OR password invalid, return same error
	if !userExists || !valid {
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(user.ID, tokenHash, time.Now().Add(SessionTokenExpiry))
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	s.logger.Info("user logged in", "user_id", user.ID.String())
	return user, token, nil
}

// Logout destroys the session for the given token.
// Idempotent: an absent or already-destroyed session is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// Authenticate resolves a session token to its user.
// A token that is absent, unknown, or expired, or whose session references
// a user that no longer exists, fails with ErrUnauthenticated. Stale
// sessions are purged as a side effect so they are not looked up again.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		s.purgeSession(ctx, session)
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Self-healing: the session outlived its user, discard it so
			// repeated requests don't keep resolving a dead reference.
			s.purgeSession(ctx, session)
			return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	// Update last seen timestamp (non-blocking, ignore errors)
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort, resolution succeeds regardless

	return user, nil
}

// PurgeExpiredSessions removes all expired sessions.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("AUTH_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

// purgeSession deletes a stale session, logging failures instead of
// surfacing them: the caller is already on an unauthenticated path.
func (s *Service) purgeSession(ctx context.Context, session *Session) {
	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("failed to purge stale session",
			"session_id", session.ID.String(),
			"error", err)
	}
}
