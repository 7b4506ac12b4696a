package database

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestListen_NotifiesTableChanges(t *testing.T) {
	uri := os.Getenv("DATABASE_URI")
	if uri == "" {
		t.Skip("DATABASE_URI not set, skipping integration test")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := New(ctx, uri, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	_, err = db.Pool.Exec(ctx, `INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		tables []string
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = db.Listen(ctx, func(table string) {
			mu.Lock()
			tables = append(tables, table)
			mu.Unlock()
		})
	}()

	// LISTEN is established asynchronously, so keep writing until one arrives.
	assert.Eventually(t, func() bool {
		if _, err := db.Pool.Exec(ctx, `UPDATE settings SET updated_at = NOW() WHERE id = 1`); err != nil {
			return false
		}

		mu.Lock()
		defer mu.Unlock()
		return len(tables) > 0
	}, 5*time.Second, 100*time.Millisecond)

	mu.Lock()
	assert.Contains(t, tables, "settings")
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestListen_ReconnectWaitsOnClock(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	clock := clockz.NewFakeClock()
	db := &DB{
		uri:    "postgres://upkeep@127.0.0.1:1/upkeep?connect_timeout=1",
		logger: zap.New(core),
		clock:  clock,
	}
	lost := func() int {
		return recorded.FilterMessage("Change feed connection lost, reconnecting").Len()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- db.Listen(ctx, func(string) {}) }()

	require.Eventually(t, clock.HasWaiters, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, lost())

	clock.Advance(listenRetryDelay)
	clock.BlockUntilReady()
	require.Eventually(t, func() bool { return lost() == 2 && clock.HasWaiters() }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
