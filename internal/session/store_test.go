package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/early-design-app/internal/observability"
)

func newTestStore(clock clockwork.Clock) (*Store, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewStore(time.Hour, clock, slog.Default(), m), m
}

func TestStore_GetOrCreate(t *testing.T) {
	store, m := newTestStore(clockwork.NewFakeClock())

	sess, created := store.GetOrCreate("")
	require.True(t, created)
	require.NotEmpty(t, sess.ID)

	again, created := store.GetOrCreate(sess.ID)
	assert.False(t, created)
	assert.Same(t, sess, again)

	_, created = store.GetOrCreate("unknown-id")
	assert.True(t, created)
	assert.Equal(t, 2, store.Len())
	assert.InDelta(t, 2, testutil.ToFloat64(m.ActiveSessions), 0)
}

func TestStore_ExpiresIdleSessions(t *testing.T) {
	fc := clockwork.NewFakeClock()
	store, m := newTestStore(fc)

	idle := store.Create()
	active := store.Create()

	fc.Advance(40 * time.Minute)
	_, ok := store.Get(active.ID)
	require.True(t, ok)

	fc.Advance(30 * time.Minute)
	_, ok = store.Get(idle.ID)
	assert.False(t, ok, "idle session should have expired")

	_, ok = store.Get(active.ID)
	assert.True(t, ok, "touched session should still be live")
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveSessions), 0)
}

func TestStore_Sweep(t *testing.T) {
	fc := clockwork.NewFakeClock()
	store, _ := newTestStore(fc)
	store.Create()
	store.Create()

	assert.Equal(t, 0, store.Sweep(context.Background()))
	fc.Advance(2 * time.Hour)
	assert.Equal(t, 2, store.Sweep(context.Background()))
	assert.Equal(t, 0, store.Len())
}

func TestStore_SweepReleasesUnusedWeatherFiles(t *testing.T) {
	fc := clockwork.NewFakeClock()
	store, _ := newTestStore(fc)

	var released []string
	store.OnRelease(func(_ context.Context, identity string) {
		released = append(released, identity)
	})

	gone := store.Create()
	gone.SetWeather("uploads/aaaa/a.epw", "aaaa", SourceUpload)
	shared := store.Create()
	shared.SetWeather("sample.epw", "bbbb", SourceSample)
	expiredViaGet := store.Create()
	expiredViaGet.SetWeather("uploads/cccc/c.epw", "cccc", SourceUpload)
	store.Create() // no weather file

	fc.Advance(40 * time.Minute)
	keeper := store.Create()
	keeper.SetWeather("sample.epw", "bbbb", SourceSample)

	fc.Advance(30 * time.Minute)
	_, ok := store.Get(expiredViaGet.ID)
	require.False(t, ok)

	assert.Equal(t, 3, store.Sweep(context.Background()))
	assert.ElementsMatch(t, []string{"aaaa", "cccc"}, released, "bbbb is still used by a live session")

	released = nil
	assert.Equal(t, 0, store.Sweep(context.Background()))
	assert.Empty(t, released, "identities are released once")
}

func TestStore_RunSweepsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := clockwork.NewFakeClock()
	store, _ := newTestStore(fc)
	store.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Minute)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, fc.BlockUntilContext(waitCtx, 1))

	fc.Advance(2 * time.Hour)
	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
