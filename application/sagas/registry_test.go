package sagas_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"artion-backend/application/sagas"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedHarness(approved ...common.Address) (*harness, *manualClock) {
	h := newHarness(approved...)
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	h.deps.Clock = clock
	return h, clock
}

func TestRegistry_OpenGetClose(t *testing.T) {
	h := newHarness()
	registry := sagas.NewRegistry(h.deps, 0)

	c := registry.Open("user-1")
	got, ok := registry.Get(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, registry.Len())

	assert.True(t, registry.Close(c.ID()))
	assert.False(t, registry.Close(c.ID()))
	_, ok = registry.Get(c.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, c.Approve(context.Background()), sagas.ErrDetached)
}

func TestRegistry_LookupRequiresOwner(t *testing.T) {
	h := newHarness()
	registry := sagas.NewRegistry(h.deps, 0)
	c := registry.Open("user-1")

	_, foreign := registry.Lookup(c.ID(), "user-2")
	got, own := registry.Lookup(c.ID(), "user-1")

	assert.False(t, foreign)
	require.True(t, own)
	assert.Same(t, c, got)
}

func TestRegistry_SweepExpiresIdleSessions(t *testing.T) {
	// Arrange
	h, clock := newClockedHarness()
	registry := sagas.NewRegistry(h.deps, 10*time.Minute)
	stale := registry.Open("user-1")
	active := registry.Open("user-2")

	clock.Advance(6 * time.Minute)
	_, ok := registry.Lookup(active.ID(), "user-2")
	require.True(t, ok)
	clock.Advance(5 * time.Minute)

	// Act
	evicted := registry.Sweep()

	// Assert
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, registry.Len())
	_, ok = registry.Get(stale.ID())
	assert.False(t, ok)
	_, ok = registry.Get(active.ID())
	assert.True(t, ok)
	_, err := stale.AddAsset(context.Background(), testAsset(contractA, 1))
	assert.ErrorIs(t, err, sagas.ErrDetached)
}

func TestRegistry_SweepKeepsSessionWithPhaseInFlight(t *testing.T) {
	// Arrange
	ctx := context.Background()
	h, clock := newClockedHarness(contractA)
	release := make(chan time.Time)
	h.service.On("CreateBundle", mock.Anything, mock.Anything, "auth").Return("b-1", nil).WaitUntil(release).Once()
	registry := sagas.NewRegistry(h.deps, time.Minute)
	c := registry.Open("user-1")
	_, err := c.AddAsset(ctx, testAsset(contractA, 1))
	require.NoError(t, err)

	d := draft(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Commit(ctx, d, "auth")
	}()
	require.Eventually(t, func() bool { return c.State() == sagas.StateProvisioning }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Hour)

	// Act
	evicted := registry.Sweep()

	// Assert
	assert.Zero(t, evicted)
	assert.Equal(t, 1, registry.Len())
	close(release)
	<-done
	assert.Equal(t, sagas.StateCommitted, c.State())
}

func TestRegistry_ZeroTimeoutNeverExpires(t *testing.T) {
	h, clock := newClockedHarness()
	registry := sagas.NewRegistry(h.deps, 0)
	registry.Open("user-1")
	clock.Advance(24 * time.Hour)

	assert.Zero(t, registry.Sweep())
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_CloseAllDetachesEverySession(t *testing.T) {
	h := newHarness()
	registry := sagas.NewRegistry(h.deps, time.Minute)
	registry.StartSweeper()
	a := registry.Open("user-1")
	b := registry.Open("user-2")

	registry.CloseAll()
	registry.CloseAll()

	assert.Zero(t, registry.Len())
	assert.ErrorIs(t, a.Approve(context.Background()), sagas.ErrDetached)
	assert.ErrorIs(t, b.Approve(context.Background()), sagas.ErrDetached)
}
