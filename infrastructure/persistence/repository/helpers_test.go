package repository

import (
	"context"
	"testing"
	"time"

	"stockroom/domain/inventory"
	"stockroom/infrastructure/cache"
	"stockroom/infrastructure/persistence"
	"stockroom/infrastructure/persistence/retry"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB opens an isolated in-memory store. The pool is pinned to one
// connection so every session sees the same memory database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func testRetryConfig() retry.Config {
	cfg := retry.DefaultConfig
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.JitterEnabled = false
	return cfg
}

func newTestUnitOfWork(t *testing.T) *UnitOfWork {
	t.Helper()
	u := NewUnitOfWork(openTestDB(t), cache.NewService(cache.DefaultConfig())).
		WithRetryConfig(testRetryConfig())
	t.Cleanup(func() { u.Close() })
	return u
}

func testContext() context.Context {
	ctx := persistence.ContextWithCorrelationID(context.Background(), "test-correlation")
	return persistence.ContextWithActor(ctx, "tester")
}

func seedCategory(t *testing.T, u *UnitOfWork, name string) *inventory.Category {
	t.Helper()
	ctx := testContext()
	c := &inventory.Category{Name: name, Description: name + " things"}
	require.True(t, u.Categories().Add(ctx, c).IsSuccess)
	require.True(t, u.SaveChanges(ctx).IsSuccess)
	require.NotZero(t, c.ID)
	return c
}

func seedProduct(t *testing.T, u *UnitOfWork, categoryID int64, sku string, stock int) *inventory.Product {
	t.Helper()
	ctx := testContext()
	p := &inventory.Product{
		Name:         "Product " + sku,
		SKU:          sku,
		PriceCents:   500,
		CurrentStock: stock,
		ReorderLevel: 5,
		CategoryID:   categoryID,
	}
	require.True(t, u.Products().Add(ctx, p).IsSuccess)
	require.True(t, u.SaveChanges(ctx).IsSuccess)
	require.NotZero(t, p.ID)
	return p
}

func seedSupplier(t *testing.T, u *UnitOfWork, name, email string) *inventory.Supplier {
	t.Helper()
	ctx := testContext()
	s := &inventory.Supplier{Name: name, Email: email}
	require.True(t, u.Suppliers().Add(ctx, s).IsSuccess)
	require.True(t, u.SaveChanges(ctx).IsSuccess)
	return s
}
