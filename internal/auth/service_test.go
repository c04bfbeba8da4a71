// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/auth/mocks"
	"github.com/taskdeck/taskdeck/pkg/errutil"
)

func TestNewService_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		users       auth.UserRepository
		sessions    auth.SessionRepository
		hasher      auth.PasswordHasher
		expectError string
	}{
		{
			name:        "nil users repository",
			users:       nil,
			sessions:    mocks.NewMockSessionRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "users repository is required",
		},
		{
			name:        "nil sessions repository",
			users:       mocks.NewMockUserRepository(t),
			sessions:    nil,
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "sessions repository is required",
		},
		{
			name:        "nil password hasher",
			users:       mocks.NewMockUserRepository(t),
			sessions:    mocks.NewMockSessionRepository(t),
			hasher:      nil,
			expectError: "password hasher is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.sessions, tt.hasher)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewServiceWithLogger_NilLogger(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	sessions := mocks.NewMockSessionRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)

	svc, err := auth.NewServiceWithLogger(users, sessions, hasher, nil)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

func newServiceForTest(t *testing.T) (*auth.Service, *mocks.MockUserRepository, *mocks.MockSessionRepository, *mocks.MockPasswordHasher) {
	t.Helper()
	users := mocks.NewMockUserRepository(t)
	sessions := mocks.NewMockSessionRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewService(users, sessions, hasher)
	require.NoError(t, err)
	return svc, users, sessions, hasher
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("successful registration", func(t *testing.T) {
		svc, users, _, hasher := newServiceForTest(t)

		users.On("GetByUsername", ctx, "alice").Return(nil, auth.ErrNotFound)
		users.On("GetByEmail", ctx, "alice@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "password123").Return("$argon2id$v=19$m=65536,t=1,p=4$salt$hash", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(nil)

		user, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.NotEqual(t, "password123", user.PasswordHash, "password must not be stored in plaintext")
	})

	t.Run("missing fields reported in order", func(t *testing.T) {
		tests := []struct {
			name          string
			username      string
			email         string
			password      string
			expectedField string
		}{
			{"all missing reports username", "", "", "", "username"},
			{"missing email and password reports email", "alice", "", "", "email"},
			{"missing password reports password", "alice", "alice@example.com", "", "password"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, _, _, _ := newServiceForTest(t)

				user, err := svc.Register(ctx, tt.username, tt.email, tt.password)
				require.Error(t, err)
				assert.Nil(t, user)
				errutil.AssertErrorCode(t, err, "AUTH_MISSING_FIELD")
				errutil.AssertErrorContext(t, err, "field", tt.expectedField)
			})
		}
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		svc, users, _, _ := newServiceForTest(t)

		existing := &auth.User{ID: ulid.Make(), Username: "alice"}
		users.On("GetByUsername", ctx, "alice").Return(existing, nil)

		user, err := svc.Register(ctx, "alice", "new@example.com", "password123")
		require.Error(t, err)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrConflict)
		errutil.AssertErrorContext(t, err, "field", "username")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		svc, users, _, _ := newServiceForTest(t)

		existing := &auth.User{ID: ulid.Make(), Email: "alice@example.com"}
		users.On("GetByUsername", ctx, "newname").Return(nil, auth.ErrNotFound)
		users.On("GetByEmail", ctx, "alice@example.com").Return(existing, nil)

		user, err := svc.Register(ctx, "newname", "alice@example.com", "password123")
		require.Error(t, err)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrConflict)
		errutil.AssertErrorContext(t, err, "field", "email")
	})

	t.Run("username collision wins over email collision", func(t *testing.T) {
		svc, users, _, _ := newServiceForTest(t)

		// Both the username and the email are taken; the username probe
		// runs first so only it should be consulted.
		existing := &auth.User{ID: ulid.Make(), Username: "alice", Email: "alice@example.com"}
		users.On("GetByUsername", ctx, "alice").Return(existing, nil)

		_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrConflict)
		errutil.AssertErrorContext(t, err, "field", "username")
		users.AssertNotCalled(t, "GetByEmail", ctx, "alice@example.com")
	})

	t.Run("constraint violation during create surfaces as conflict", func(t *testing.T) {
		svc, users, _, hasher := newServiceForTest(t)

		// Concurrent registration slipped between the probes and the insert.
		users.On("GetByUsername", ctx, "alice").Return(nil, auth.ErrNotFound)
		users.On("GetByEmail", ctx, "alice@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "password123").Return("$argon2id$v=19$m=65536,t=1,p=4$salt$hash", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(auth.ErrConflict)

		_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("hasher failure", func(t *testing.T) {
		svc, users, _, hasher := newServiceForTest(t)

		users.On("GetByUsername", ctx, "alice").Return(nil, auth.ErrNotFound)
		users.On("GetByEmail", ctx, "alice@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "password123").Return("", errors.New("argon2 failure"))

		_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login creates session", func(t *testing.T) {
		svc, users, sessions, hasher := newServiceForTest(t)

		userID := ulid.Make()
		user := &auth.User{
			ID:           userID,
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$salt$hash",
		}

		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		hasher.On("Verify", "password123", user.PasswordHash).Return(true, nil)
		sessions.On("Create", ctx, mock.AnythingOfType("*auth.Session")).Return(nil)

		got, token, err := svc.Login(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, userID, got.ID)
		assert.Len(t, token, 64) // 32 bytes hex-encoded
	})

	t.Run("unknown email fails with invalid credentials", func(t *testing.T) {
		svc, users, _, hasher := newServiceForTest(t)

		users.On("GetByEmail", ctx, "unknown@example.com").Return(nil, auth.ErrNotFound)
		// Verify is still called with dummy hash to prevent timing attacks
		hasher.On("Verify", "password123", mock.AnythingOfType("string")).Return(false, nil)

		got, token, err := svc.Login(ctx, "unknown@example.com", "password123")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Empty(t, token)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("wrong password fails identically to unknown email", func(t *testing.T) {
		svc, users, _, hasher := newServiceForTest(t)

		user := &auth.User{
			ID:           ulid.Make(),
			Email:        "alice@example.com",
			PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$salt$hash",
		}
		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		hasher.On("Verify", "wrongpass", user.PasswordHash).Return(false, nil)

		got, token, err := svc.Login(ctx, "alice@example.com", "wrongpass")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Empty(t, token)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("missing email", func(t *testing.T) {
		svc, _, _, _ := newServiceForTest(t)

		_, _, err := svc.Login(ctx, "", "password123")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_MISSING_FIELD")
		errutil.AssertErrorContext(t, err, "field", "email")
	})

	t.Run("missing password", func(t *testing.T) {
		svc, _, _, _ := newServiceForTest(t)

		_, _, err := svc.Login(ctx, "alice@example.com", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_MISSING_FIELD")
		errutil.AssertErrorContext(t, err, "field", "password")
	})

	t.Run("session store failure", func(t *testing.T) {
		svc, users, sessions, hasher := newServiceForTest(t)

		user := &auth.User{
			ID:           ulid.Make(),
			Email:        "alice@example.com",
			PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$salt$hash",
		}
		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		hasher.On("Verify", "password123", user.PasswordHash).Return(true, nil)
		sessions.On("Create", ctx, mock.AnythingOfType("*auth.Session")).Return(errors.New("db down"))

		_, _, err := svc.Login(ctx, "alice@example.com", "password123")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_SESSION_CREATE_FAILED")
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("destroys the session", func(t *testing.T) {
		svc, _, sessions, _ := newServiceForTest(t)

		token := "sometoken"
		sessions.On("DeleteByTokenHash", ctx, auth.HashSessionToken(token)).Return(nil)

		require.NoError(t, svc.Logout(ctx, token))
	})

	t.Run("idempotent for unknown token", func(t *testing.T) {
		svc, _, sessions, _ := newServiceForTest(t)

		sessions.On("DeleteByTokenHash", ctx, mock.AnythingOfType("string")).Return(auth.ErrNotFound)

		require.NoError(t, svc.Logout(ctx, "deadtoken"))
	})

	t.Run("no-op for empty token", func(t *testing.T) {
		svc, _, _, _ := newServiceForTest(t)

		require.NoError(t, svc.Logout(ctx, ""))
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		svc, _, sessions, _ := newServiceForTest(t)

		sessions.On("DeleteByTokenHash", ctx, mock.AnythingOfType("string")).Return(errors.New("db down"))

		err := svc.Logout(ctx, "sometoken")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGOUT_FAILED")
	})
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session resolves user", func(t *testing.T) {
		svc, users, sessions, _ := newServiceForTest(t)

		userID := ulid.Make()
		token := "validtoken"
		session := &auth.Session{
			ID:        ulid.Make(),
			UserID:    userID,
			TokenHash: auth.HashSessionToken(token),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		user := &auth.User{ID: userID, Username: "alice"}

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		users.On("GetByID", ctx, userID).Return(user, nil)
		sessions.On("UpdateLastSeen", ctx, session.ID, mock.AnythingOfType("time.Time")).Return(nil)

		got, err := svc.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, got.ID)
	})

	t.Run("empty token is unauthenticated", func(t *testing.T) {
		svc, _, _, _ := newServiceForTest(t)

		got, err := svc.Authenticate(ctx, "")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("unknown token is unauthenticated", func(t *testing.T) {
		svc, _, sessions, _ := newServiceForTest(t)

		sessions.On("GetByTokenHash", ctx, mock.AnythingOfType("string")).Return(nil, auth.ErrNotFound)

		got, err := svc.Authenticate(ctx, "unknowntoken")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("expired session is purged and unauthenticated", func(t *testing.T) {
		svc, _, sessions, _ := newServiceForTest(t)

		token := "expiredtoken"
		session := &auth.Session{
			ID:        ulid.Make(),
			UserID:    ulid.Make(),
			TokenHash: auth.HashSessionToken(token),
			ExpiresAt: time.Now().Add(-time.Minute),
		}

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		sessions.On("Delete", ctx, session.ID).Return(nil)

		got, err := svc.Authenticate(ctx, token)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		sessions.AssertCalled(t, "Delete", ctx, session.ID)
	})

	t.Run("session for deleted user is purged and unauthenticated", func(t *testing.T) {
		svc, users, sessions, _ := newServiceForTest(t)

		token := "orphantoken"
		session := &auth.Session{
			ID:        ulid.Make(),
			UserID:    ulid.Make(),
			TokenHash: auth.HashSessionToken(token),
			ExpiresAt: time.Now().Add(time.Hour),
		}

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		users.On("GetByID", ctx, session.UserID).Return(nil, auth.ErrNotFound)
		sessions.On("Delete", ctx, session.ID).Return(nil)

		got, err := svc.Authenticate(ctx, token)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		sessions.AssertCalled(t, "Delete", ctx, session.ID)
	})

	t.Run("last seen update failure does not fail resolution", func(t *testing.T) {
		svc, users, sessions, _ := newServiceForTest(t)

		userID := ulid.Make()
		token := "validtoken"
		session := &auth.Session{
			ID:        ulid.Make(),
			UserID:    userID,
			TokenHash: auth.HashSessionToken(token),
			ExpiresAt: time.Now().Add(time.Hour),
		}
		user := &auth.User{ID: userID}

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		users.On("GetByID", ctx, userID).Return(user, nil)
		sessions.On("UpdateLastSeen", ctx, session.ID, mock.AnythingOfType("time.Time")).Return(errors.New("db down"))

		got, err := svc.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, got.ID)
	})
}

func TestService_PurgeExpiredSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("returns purge count", func(t *testing.T) {
		svc, _, sessions, _ := newServiceForTest(t)

		sessions.On("DeleteExpired", ctx).Return(int64(3), nil)

		n, err := svc.PurgeExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		svc, _, sessions, _ := newServiceForTest(t)

		sessions.On("DeleteExpired", ctx).Return(int64(0), errors.New("db down"))

		_, err := svc.PurgeExpiredSessions(ctx)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_PURGE_FAILED")
	})
}
