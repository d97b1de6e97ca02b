package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() Service {
	return NewService(Config{Capacity: 1000, NumShards: 8, TTL: time.Minute, EvictionPercentage: 10})
}

func TestGetOrCreateFetchesOnceThenServesCached(t *testing.T) {
	svc := newTestService()
	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "value", nil
	}

	for i := 0; i < 5; i++ {
		got, err := svc.GetOrCreate(context.Background(), "products::GetAll", 0, fetch)
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCreateDoesNotCacheFailures(t *testing.T) {
	svc := newTestService()
	var calls atomic.Int32
	boom := errors.New("store unavailable")
	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return "recovered", nil
	}

	_, err := svc.GetOrCreate(context.Background(), "k", 0, fetch)
	require.Error(t, err)

	got, err := svc.GetOrCreate(context.Background(), "k", 0, fetch)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	svc := newTestService()
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return int64(99), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.GetOrCreate(context.Background(), "hot-key", 0, fetch)
			assert.NoError(t, err)
			assert.Equal(t, int64(99), got)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoveDropsExactKey(t *testing.T) {
	svc := newTestService()
	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	_, err := svc.GetOrCreate(context.Background(), "products::GetByID::1", 0, fetch)
	require.NoError(t, err)

	svc.Remove("products::GetByID::1")

	_, err = svc.GetOrCreate(context.Background(), "products::GetByID::1", 0, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoveByPrefixDropsOnlyMatchingKeys(t *testing.T) {
	svc := newTestService()
	fetch := func(v string) FetchFn {
		return func(ctx context.Context) (any, error) { return v, nil }
	}

	ctx := context.Background()
	_, err := svc.GetOrCreate(ctx, "products::GetAll", 0, fetch("p"))
	require.NoError(t, err)
	_, err = svc.GetOrCreate(ctx, "products::GetByID::1", 0, fetch("p1"))
	require.NoError(t, err)
	_, err = svc.GetOrCreate(ctx, "categories::GetAll", 0, fetch("c"))
	require.NoError(t, err)

	svc.RemoveByPrefix(EntityPrefix("products"))

	keys := svc.Keys()
	assert.NotContains(t, keys, "products::GetAll")
	assert.NotContains(t, keys, "products::GetByID::1")
	assert.Contains(t, keys, "categories::GetAll")
}

// Entries carrying a non-default TTL land in their own client; key
// operations still see them.
func TestPerEntryTTLBuckets(t *testing.T) {
	svc := newTestService()
	fetch := func(ctx context.Context) (any, error) { return "v", nil }

	ctx := context.Background()
	_, err := svc.GetOrCreate(ctx, "products::A", 0, fetch)
	require.NoError(t, err)
	_, err = svc.GetOrCreate(ctx, "products::B", 30*time.Second, fetch)
	require.NoError(t, err)

	keys := svc.Keys()
	assert.Contains(t, keys, "products::A")
	assert.Contains(t, keys, "products::B")

	svc.RemoveByPrefix(EntityPrefix("products"))
	assert.Empty(t, svc.Keys())
}

func TestGenericWrapperReturnsTypedValue(t *testing.T) {
	svc := newTestService()

	got, err := GetOrCreate(context.Background(), svc, "k", 0, func(ctx context.Context) ([]int64, error) {
		return []int64{1, 2, 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestConfigDefaultsApplied(t *testing.T) {
	svc := NewService(Config{})
	_, err := svc.GetOrCreate(context.Background(), "k", 0, func(ctx context.Context) (any, error) {
		return 1, nil
	})
	require.NoError(t, err)
}
