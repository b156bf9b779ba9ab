package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/testutil"
)

func TestLocalUserRepo_Integration_CreateAndFind(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewLocalUserRepo(db)
		ctx := context.Background()

		created, err := repo.Create(ctx, "Pat@Acme.com", "bcrypt-hash", identity.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, "pat@acme.com", created.Email, "email is stored lowercased")
		assert.Positive(t, created.ID)

		byID, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, byID)

		// Lookup is case-insensitive and trims whitespace.
		byEmail, err := repo.FindByEmail(ctx, "  PAT@ACME.COM  ")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
		assert.Equal(t, "bcrypt-hash", byEmail.PasswordHash)
	})
}

func TestLocalUserRepo_Integration_DuplicateEmail(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewLocalUserRepo(db)
		ctx := context.Background()

		_, err := repo.Create(ctx, "dup@acme.com", "hash-a", identity.RoleUser)
		require.NoError(t, err)

		// Same address in a different case still collides.
		_, err = repo.Create(ctx, "DUP@acme.com", "hash-b", identity.RoleUser)
		assert.ErrorIs(t, err, ErrUserEmailExists)
	})
}

func TestLocalUserRepo_Integration_FixedClockStampsCreatedAt(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		repo := NewLocalUserRepoWithTimeProvider(db, NewFixedTimeProvider(fixed))
		ctx := context.Background()

		created, err := repo.Create(ctx, "clock@acme.com", "hash", identity.RoleUser)
		require.NoError(t, err)

		var createdAt time.Time
		err = db.QueryRowContext(ctx,
			`SELECT created_at FROM users WHERE id = $1`, created.ID,
		).Scan(&createdAt)
		require.NoError(t, err)
		assert.True(t, createdAt.Equal(fixed), "created_at %v != fixed clock %v", createdAt, fixed)
	})
}

func TestLocalUserRepo_Integration_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewLocalUserRepo(db)
		ctx := context.Background()

		created, err := repo.Create(ctx, "gone@acme.com", "hash", identity.RoleUser)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, created.ID))

		_, err = repo.FindByID(ctx, created.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)

		assert.ErrorIs(t, repo.Delete(ctx, created.ID), ErrUserNotFound)
	})
}
