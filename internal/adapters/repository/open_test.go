package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetries(t *testing.T) {
	t.Helper()
	initial, maxInterval := connectInitialInterval, connectMaxInterval
	connectInitialInterval, connectMaxInterval = time.Millisecond, 2*time.Millisecond
	t.Cleanup(func() { connectInitialInterval, connectMaxInterval = initial, maxInterval })
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := Open(ctx, DriverMemory, "", 1)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "data", "circle.db"), 3, WithClock(clock))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		u, err := s.UpsertUser(ctx, "demo@circle.app", "Demo User")
		require.NoError(t, err)
		assert.True(t, fixedNow.Equal(u.CreatedAt))
	})

	t.Run("unknown driver fails at once", func(t *testing.T) {
		fastRetries(t)
		_, err := Open(ctx, "oracle", "x", 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unreachable database is retried then reported", func(t *testing.T) {
		fastRetries(t)
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		start := time.Now()
		_, err := Open(ctx, DriverSQLite, filepath.Join(blocker, "sub", "circle.db"), 3)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		fastRetries(t)
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Open(cctx, DriverSQLite, filepath.Join(blocker, "sub", "circle.db"), 100)
		require.Error(t, err)
	})
}
