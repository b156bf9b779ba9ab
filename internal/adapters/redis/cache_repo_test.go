package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/insights-api/internal/testutil"
)

func TestCacheRepo_SetGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewCacheRepo(client)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		err := repo.Set(ctx, "cachetest:a", []byte(`{"v":1}`), time.Minute)
		require.NoError(t, err)

		got, err := repo.Get(ctx, "cachetest:a")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"v":1}`), got)
	})

	t.Run("get missing key is nil not error", func(t *testing.T) {
		got, err := repo.Get(ctx, "cachetest:missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "cachetest:b", []byte("x"), time.Minute))

		deleted, err := repo.Delete(ctx, "cachetest:b")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "cachetest:b")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		assert.Error(t, repo.Set(ctx, "", []byte("x"), 0))

		_, err := repo.Get(ctx, "")
		assert.Error(t, err)
	})
}

func TestCacheRepo_Keys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewCacheRepo(client)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "keytest:one", []byte("1"), time.Minute))
	require.NoError(t, repo.Set(ctx, "keytest:two", []byte("2"), time.Minute))
	require.NoError(t, repo.Set(ctx, "other:three", []byte("3"), time.Minute))

	keys, err := repo.Keys(ctx, "keytest:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keytest:one", "keytest:two"}, keys)
}
