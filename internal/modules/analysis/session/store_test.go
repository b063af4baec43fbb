package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envscope/internal/modules/analysis/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func echoCompleter() completerFunc {
	return func(_ context.Context, _ []types.ConversationTurn, text string) (string, error) {
		return text, nil
	}
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(echoCompleter(), Options{})

	assert.Equal(t, PolicyReject, s.opts.Policy)
	assert.Equal(t, DefaultIdleTTL, s.opts.IdleTTL)
	assert.NotNil(t, s.opts.Logger)
	assert.NotNil(t, s.opts.Now)
}

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore(echoCompleter(), Options{Logger: discardLogger()})

	sess := s.Create()
	_, err := uuid.Parse(sess.ID())
	require.NoError(t, err)

	got, ok := s.Get(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStore_GetOrCreate(t *testing.T) {
	s := NewStore(echoCompleter(), Options{Logger: discardLogger()})

	a, created := s.GetOrCreate("")
	assert.True(t, created)

	b, created := s.GetOrCreate(a.ID())
	assert.False(t, created)
	assert.Same(t, a, b)

	c, created := s.GetOrCreate("unknown-or-evicted")
	assert.True(t, created)
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Equal(t, 2, s.Len())
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	s := NewStore(echoCompleter(), Options{Logger: discardLogger()})
	a, b := s.Create(), s.Create()

	_, err := a.Send(context.Background(), "only in a")
	require.NoError(t, err)

	assert.Len(t, a.Snapshot().Turns, 2)
	assert.Empty(t, b.Snapshot().Turns)
}

func TestStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(echoCompleter(), Options{IdleTTL: time.Hour, Logger: discardLogger(), Now: clock.Now})

	stale := s.Create()
	clock.Advance(45 * time.Minute)
	fresh := s.Create()
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, s.Sweep(clock.Now()))
	_, ok := s.Get(stale.ID())
	assert.False(t, ok)
	_, ok = s.Get(fresh.ID())
	assert.True(t, ok)

	assert.Equal(t, 0, s.Sweep(clock.Now()))
}

func TestStore_SweepKeepsInFlight(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	started := make(chan struct{})
	release := make(chan struct{})
	s := NewStore(completerFunc(func(context.Context, []types.ConversationTurn, string) (string, error) {
		close(started)
		<-release
		return "done", nil
	}), Options{IdleTTL: time.Minute, Logger: discardLogger(), Now: clock.Now})

	sess := s.Create()
	done := make(chan struct{})
	go func() {
		_, _ = sess.Send(context.Background(), "long question")
		close(done)
	}()
	<-started

	clock.Advance(time.Hour)
	assert.Equal(t, 0, s.Sweep(clock.Now()))

	close(release)
	<-done
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep(clock.Now()))
}

func TestStore_RunSweeperStopsOnCancel(t *testing.T) {
	s := NewStore(echoCompleter(), Options{IdleTTL: time.Nanosecond, Logger: discardLogger()})
	s.Create()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.RunSweeper(ctx, 5*time.Millisecond)
		close(stopped)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("RunSweeper did not return after cancel")
	}
}
