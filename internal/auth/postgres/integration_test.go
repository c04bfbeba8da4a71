// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Taskdeck Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/auth/postgres"
	"github.com/taskdeck/taskdeck/internal/store"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

// TestMain sets up a PostgreSQL testcontainer for integration tests.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("taskdeck_test"),
		tcpostgres.WithUsername("taskdeck"),
		tcpostgres.WithPassword("taskdeck"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func createTestUser(t *testing.T, suffix string) *auth.User {
	t.Helper()
	user, err := auth.NewUser("user_"+suffix, "user_"+suffix+"@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, postgres.NewUserRepository(testPool).Create(context.Background(), user))
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("create and fetch back", func(t *testing.T) {
		user := createTestUser(t, "alice")

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, got.Username)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, user.PasswordHash, got.PasswordHash)
	})

	t.Run("username lookup is case-insensitive", func(t *testing.T) {
		user := createTestUser(t, "Bob")

		got, err := repo.GetByUsername(ctx, "USER_BOB")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		user := createTestUser(t, "carol")

		got, err := repo.GetByEmail(ctx, "USER_CAROL@EXAMPLE.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("duplicate username conflicts on the username field", func(t *testing.T) {
		user := createTestUser(t, "dave")

		dup, err := auth.NewUser(user.Username, "other_dave@example.com", "hash")
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		require.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		user := createTestUser(t, "erin")

		dup, err := auth.NewUser("other_erin", user.Email, "hash")
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		require.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("missing user returns ErrNotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, ulid.Make())
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewSessionRepository(testPool)

	newSession := func(t *testing.T, userID ulid.ULID, expiresAt time.Time) (*auth.Session, string) {
		t.Helper()
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		session, err := auth.NewSession(userID, hash, expiresAt)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, session))
		return session, token
	}

	t.Run("create and resolve by token hash", func(t *testing.T) {
		user := createTestUser(t, "frank")
		session, token := newSession(t, user.ID, time.Now().Add(time.Hour))

		got, err := repo.GetByTokenHash(ctx, auth.HashSessionToken(token))
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, user.ID, got.UserID)
	})

	t.Run("delete by id", func(t *testing.T) {
		user := createTestUser(t, "grace")
		session, _ := newSession(t, user.ID, time.Now().Add(time.Hour))

		require.NoError(t, repo.Delete(ctx, session.ID))
		err := repo.Delete(ctx, session.ID)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("delete expired removes only expired sessions", func(t *testing.T) {
		user := createTestUser(t, "heidi")
		_, liveToken := newSession(t, user.ID, time.Now().Add(time.Hour))
		newSession(t, user.ID, time.Now().Add(-time.Hour))

		n, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = repo.GetByTokenHash(ctx, auth.HashSessionToken(liveToken))
		require.NoError(t, err)
	})

	t.Run("deleting a user cascades to sessions", func(t *testing.T) {
		user := createTestUser(t, "ivan")
		_, token := newSession(t, user.ID, time.Now().Add(time.Hour))

		_, err := testPool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID.String())
		require.NoError(t, err)

		_, err = repo.GetByTokenHash(ctx, auth.HashSessionToken(token))
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}
