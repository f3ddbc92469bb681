package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireMutualExclusion(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	const racers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		locker := store.Locker(fmt.Sprintf("instance-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := locker.Acquire(ctx, "task_lock:tsk_1", time.Minute)
			require.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one racer must win the lease")
}

func TestAcquireAfterExpiry(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	a := store.Locker("instance-a")
	b := store.Locker("instance-b")

	ok, err := a.Acquire(ctx, "k", 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "live lease must block other holders")

	time.Sleep(60 * time.Millisecond)

	ok, err = b.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease must be reacquirable")
}

func TestLeaseLivenessUnderRenewal(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	holder := store.Locker("instance-a")
	rival := store.Locker("instance-b")

	const ttl = 100 * time.Millisecond
	ok, err := holder.Acquire(ctx, "k", ttl)
	require.NoError(t, err)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		tick := time.NewTicker(ttl / 2)
		defer tick.Stop()
		deadline := time.After(4 * ttl)
		for {
			select {
			case <-deadline:
				return
			case <-tick.C:
				ok, err := holder.Renew(ctx, "k", ttl)
				assert.NoError(t, err)
				assert.True(t, ok, "renewal must succeed while we hold the lease")
			}
		}
	}()

	// the rival must never get in while renewal keeps the lease alive
	for i := 0; i < 8; i++ {
		ok, err := rival.Acquire(ctx, "k", ttl)
		require.NoError(t, err)
		assert.False(t, ok)
		time.Sleep(ttl / 2)
	}
	<-done

	require.NoError(t, holder.Release(ctx, "k"))
	ok, err = rival.Acquire(ctx, "k", ttl)
	require.NoError(t, err)
	assert.True(t, ok, "release must make the key immediately acquirable")
}

func TestRenewOwnership(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	a := store.Locker("instance-a")
	b := store.Locker("instance-b")

	ok, err := a.Acquire(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	// lease expired and changed hands
	ok, err = b.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.Renew(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "renew must refuse a lease held by someone else")

	ok, err = b.Renew(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "the new holder's lease must be untouched")
}

func TestRenewAbsentKey(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ok, err := store.Locker("instance-a").Renew(context.Background(), "nope", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseIsUnconditional(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	a := store.Locker("instance-a")
	b := store.Locker("instance-b")

	ok, err := b.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// a never held the lease but release still deletes it
	require.NoError(t, a.Release(ctx, "k"))
	ok, err = a.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
