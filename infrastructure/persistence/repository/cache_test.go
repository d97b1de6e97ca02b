package repository

import (
	"testing"
	"time"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCacheServesFromCacheUntilInvalidated(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	cat := seedCategory(t, u, "Cached")
	seedProduct(t, u, cat.ID, "SKU-C1", 1)

	spec := shared.NewSpecification[inventory.Product]().
		Where(shared.Eq("category_id", cat.ID))
	key := u.products.CacheKey("ByCategory", cat.ID)

	first := u.Products().GetOrCache(ctx, key, time.Minute, spec)
	require.True(t, first.IsSuccess)
	require.Len(t, first.Value, 1)

	// a write the cache knows nothing about
	seedProduct(t, u, cat.ID, "SKU-C2", 1)

	// the stale entry is served until the caller invalidates - that is the
	// documented contract, not a bug
	stale := u.Products().GetOrCache(ctx, key, time.Minute, spec)
	require.True(t, stale.IsSuccess)
	assert.Len(t, stale.Value, 1)

	u.Products().InvalidateCache()

	fresh := u.Products().GetOrCache(ctx, key, time.Minute, spec)
	require.True(t, fresh.IsSuccess)
	assert.Len(t, fresh.Value, 2)
}

func TestInvalidateCacheKeyDropsOneEntry(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	cat := seedCategory(t, u, "KeyedCache")
	p := seedProduct(t, u, cat.ID, "SKU-K1", 3)

	byID := u.products.CacheKey("GetByID", p.ID)
	all := u.products.CacheKey("GetAll")

	require.True(t, u.Products().GetByIDOrCache(ctx, byID, p.ID, time.Minute).IsSuccess)
	require.True(t, u.Products().GetOrCache(ctx, all, time.Minute, nil).IsSuccess)

	p.CurrentStock = 9
	require.True(t, u.Products().Update(ctx, p).IsSuccess)
	require.True(t, u.SaveChanges(ctx).IsSuccess)
	u.Products().InvalidateCacheKey(byID)

	refreshed := u.Products().GetByIDOrCache(ctx, byID, p.ID, time.Minute)
	require.True(t, refreshed.IsSuccess)
	assert.Equal(t, 9, refreshed.Value.CurrentStock)

	// the untouched key still serves the old snapshot
	staleAll := u.Products().GetOrCache(ctx, all, time.Minute, nil)
	require.True(t, staleAll.IsSuccess)
	require.Len(t, staleAll.Value, 1)
	assert.Equal(t, 3, staleAll.Value[0].CurrentStock)
}

func TestGetByIDOrCacheMissingRowIs404(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	products := u.Products()
	res := products.GetByIDOrCache(ctx, u.products.CacheKey("GetByID", 9999), 9999, time.Minute)
	require.True(t, res.IsFailure())
	assert.Equal(t, 404, res.StatusCode)
}

func TestGetByIDOrCachePreloadsIncludes(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	cat := seedCategory(t, u, "Navigated")
	p := seedProduct(t, u, cat.ID, "SKU-NAV2", 1)

	key := u.products.CacheKey("GetByID", p.ID, "Category")
	res := u.Products().GetByIDOrCache(ctx, key, p.ID, time.Minute, "Category")
	require.True(t, res.IsSuccess)
	require.NotNil(t, res.Value.Category)
	assert.Equal(t, "Navigated", res.Value.Category.Name)
}

func TestCachedEntitiesAreSharedAcrossHits(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	cat := seedCategory(t, u, "SharedCache")
	p := seedProduct(t, u, cat.ID, "SKU-SH1", 2)

	key := u.products.CacheKey("GetByID", p.ID)
	first := u.Products().GetByIDOrCache(ctx, key, p.ID, time.Minute)
	second := u.Products().GetByIDOrCache(ctx, key, p.ID, time.Minute)
	require.True(t, first.IsSuccess)
	require.True(t, second.IsSuccess)

	// hits on one key hand out the same pointers, which is why callers
	// must treat cached entities as read-only
	assert.Same(t, first.Value, second.Value)
}

func TestInvalidateCacheIsScopedToEntityType(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	cat := seedCategory(t, u, "ScopedCache")
	seedProduct(t, u, cat.ID, "SKU-S1", 1)

	catKey := u.categories.CacheKey("GetAll")
	prodKey := u.products.CacheKey("GetAll")
	require.True(t, u.Categories().GetOrCache(ctx, catKey, time.Minute, nil).IsSuccess)
	require.True(t, u.Products().GetOrCache(ctx, prodKey, time.Minute, nil).IsSuccess)

	u.Products().InvalidateCache()

	keys := u.cache.Keys()
	assert.Contains(t, keys, catKey)
	assert.NotContains(t, keys, prodKey)
}
