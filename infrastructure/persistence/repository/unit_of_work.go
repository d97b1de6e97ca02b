package repository

import (
	"context"
	"database/sql"
	"errors"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"
	"stockroom/infrastructure/cache"
	"stockroom/infrastructure/persistence"
	"stockroom/infrastructure/persistence/retry"
	"stockroom/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errUnitOfWorkClosed = errors.New("unit of work is closed")

// UnitOfWork is the single transactional boundary spanning the inventory
// repositories. It owns one session; every repository obtained from it
// shares that session, and a queued write stays pending until SaveChanges.
//
// A unit of work is scoped to one logical operation and is not safe to share
// across concurrent operations; sharing the one connection already precludes
// concurrent use. Close releases the session and invalidates all repository
// handles.
type UnitOfWork struct {
	db          *gorm.DB
	cache       cache.Service
	retryConfig retry.Config
	interceptor auditInterceptor

	pending  []*change
	activeTx *localTransaction
	closed   bool

	categories *categoryRepository
	products   *productRepository
	suppliers  *supplierRepository
	movements  *stockMovementRepository
}

func NewUnitOfWork(db *gorm.DB, cacheService cache.Service) *UnitOfWork {
	return &UnitOfWork{
		db:          db,
		cache:       cacheService,
		retryConfig: retry.DefaultConfig,
	}
}

// WithRetryConfig overrides the transient-failure retry policy.
func (u *UnitOfWork) WithRetryConfig(cfg retry.Config) *UnitOfWork {
	u.retryConfig = cfg
	return u
}

func (u *UnitOfWork) Categories() inventory.CategoryRepository {
	if u.categories == nil {
		u.categories = newCategoryRepository(u)
	}
	return u.categories
}

func (u *UnitOfWork) Products() inventory.ProductRepository {
	if u.products == nil {
		u.products = newProductRepository(u)
	}
	return u.products
}

func (u *UnitOfWork) Suppliers() inventory.SupplierRepository {
	if u.suppliers == nil {
		u.suppliers = newSupplierRepository(u)
	}
	return u.suppliers
}

func (u *UnitOfWork) StockMovements() inventory.StockMovementRepository {
	if u.movements == nil {
		u.movements = newStockMovementRepository(u)
	}
	return u.movements
}

func (u *UnitOfWork) enqueue(c *change) error {
	if u.closed {
		return errUnitOfWorkClosed
	}
	u.pending = append(u.pending, c)
	return nil
}

// SaveChanges stamps every pending change through the audit interceptor and
// applies them in issue order, atomically. Without an explicit transaction
// the batch runs in its own transaction with transient-failure retry; inside
// one it joins, and the caller decides the outcome.
//
// Concurrency conflicts surface as 409 failures distinct from other store
// errors. Pending changes are kept on failure so the caller may correct and
// retry explicitly.
func (u *UnitOfWork) SaveChanges(ctx context.Context) shared.Result[int64] {
	if u.closed {
		return shared.Fail[int64](500, errUnitOfWorkClosed.Error())
	}
	if err := ctx.Err(); err != nil {
		return failure[int64](ctx, "unit of work", err)
	}
	if len(u.pending) == 0 {
		return shared.Ok(int64(0))
	}

	changes := u.pending
	var rows int64
	apply := func(tx *gorm.DB) error {
		rows = 0
		for _, c := range changes {
			n, err := c.apply(tx)
			if err != nil {
				return err
			}
			rows += n
		}
		return nil
	}

	var err error
	switch {
	case persistence.TxFromContext(ctx) != nil:
		u.interceptor.Stamp(ctx, changes)
		err = apply(persistence.TxFromContext(ctx))
	case u.activeTx != nil:
		u.interceptor.Stamp(ctx, changes)
		err = apply(u.activeTx.tx.WithContext(ctx))
	default:
		err = retry.ExecuteWithRetry(ctx, u.retryConfig, func(ctx context.Context) error {
			u.interceptor.Stamp(ctx, changes)
			return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return apply(tx)
			})
		})
	}
	if err != nil {
		return failure[int64](ctx, "unit of work", err)
	}

	u.pending = nil
	return shared.Ok(rows)
}

// BeginTransaction starts a local transaction bound to the session. All
// repository operations route through it until it completes; the caller must
// commit or roll back.
func (u *UnitOfWork) BeginTransaction(ctx context.Context) (inventory.Transaction, error) {
	if u.closed {
		return nil, errUnitOfWorkClosed
	}
	if u.activeTx != nil {
		return nil, errors.New("a transaction is already active on this unit of work")
	}

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, classifyStoreError(tx.Error, "transaction")
	}
	t := &localTransaction{tx: tx, uow: u}
	u.activeTx = t
	return t, nil
}

// BeginDistributedTransaction starts (or, with ScopeRequired, joins) a
// coordinator spanning several stores. Each joining unit of work begins its
// own branch transaction and enlists it; the coordinator commits every
// branch under one completion decision. The returned context carries the
// coordinator so nested ScopeRequired calls join it; operations route to the
// right branch through their owning unit of work.
func (u *UnitOfWork) BeginDistributedTransaction(ctx context.Context, opts inventory.DistributedTxOptions) (inventory.Transaction, context.Context, error) {
	if u.closed {
		return nil, ctx, errUnitOfWorkClosed
	}
	if u.activeTx != nil {
		return nil, ctx, errors.New("a transaction is already active on this unit of work")
	}

	dt := (*DistributedTransaction)(nil)
	tctx := ctx
	if opts.Scope == inventory.ScopeRequired {
		dt = CoordinatorFromContext(ctx)
	}

	var cancel context.CancelFunc
	if dt == nil {
		if opts.Timeout > 0 {
			tctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		dt = &DistributedTransaction{cancel: cancel, deadline: tctx}
	}

	iso := opts.Isolation
	if iso == sql.LevelDefault {
		iso = sql.LevelReadCommitted
	}

	tx := u.db.WithContext(tctx).Begin(&sql.TxOptions{Isolation: iso})
	if tx.Error != nil {
		if cancel != nil {
			cancel()
		}
		return nil, ctx, classifyStoreError(tx.Error, "transaction")
	}

	branch := &localTransaction{tx: tx, uow: u}
	if err := dt.Enlist(branch); err != nil {
		tx.Rollback()
		if cancel != nil {
			cancel()
		}
		return nil, ctx, err
	}
	u.activeTx = branch

	return dt, contextWithCoordinator(tctx, dt), nil
}

// ExecuteInTransaction runs fn, saves the queued changes and commits; on any
// failure everything is rolled back and false is returned. The causal error
// is deliberately not returned: it is logged with a correlation id, and
// callers that need the detail must drive BeginTransaction/Commit/Rollback
// themselves. This asymmetry is an intentional simplicity tradeoff for
// batch-style call sites.
func (u *UnitOfWork) ExecuteInTransaction(ctx context.Context, fn func(ctx context.Context) error) bool {
	if err := u.executeInTransaction(ctx, fn); err != nil {
		cid := correlationID(ctx)
		logger.WithCorrelationID(cid).Error("transactional batch failed, rolled back", zap.Error(err))
		return false
	}
	return true
}

func (u *UnitOfWork) executeInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := u.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := fn(ctx); err != nil {
		u.pending = nil
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, shared.ErrTransactionCompleted) {
			logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if res := u.SaveChanges(ctx); res.IsFailure() {
		u.pending = nil
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, shared.ErrTransactionCompleted) {
			logger.Error("rollback failed", zap.Error(rbErr))
		}
		return errors.New(res.Message)
	}

	return tx.Commit(ctx)
}

// ExecuteInTransactionValue is the value-returning overload of
// ExecuteInTransaction, with the same swallow-and-log failure policy: on any
// failure the zero value is returned and the causal error is only logged.
func ExecuteInTransactionValue[T any](ctx context.Context, u *UnitOfWork, fn func(ctx context.Context) (T, error)) T {
	var value T
	ok := u.ExecuteInTransaction(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if !ok {
		var zero T
		return zero
	}
	return value
}

// Close discards pending changes, rolls back any open transaction and marks
// the unit of work unusable. Repository handles obtained from it are invalid
// afterwards.
func (u *UnitOfWork) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.pending = nil
	if u.activeTx != nil {
		return u.activeTx.Close()
	}
	return nil
}

// Factory builds request-scoped units of work over one shared connection
// pool and cache.
type Factory struct {
	db          *gorm.DB
	cache       cache.Service
	retryConfig retry.Config
}

func NewFactory(db *gorm.DB, cacheService cache.Service, retryConfig retry.Config) *Factory {
	return &Factory{db: db, cache: cacheService, retryConfig: retryConfig}
}

func (f *Factory) New() inventory.UnitOfWork {
	return NewUnitOfWork(f.db, f.cache).WithRetryConfig(f.retryConfig)
}

// AutoMigrate creates or updates the inventory tables and the live-row
// uniqueness indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&inventory.Category{},
		&inventory.Supplier{},
		&inventory.Product{},
		&inventory.ProductSupplier{},
		&inventory.StockMovement{},
	); err != nil {
		return err
	}
	return createLiveUniqueIndexes(db)
}

// createLiveUniqueIndexes enforces uniqueness over live rows. The composite
// (column, deleted_ref) form stands in for a partial index: live rows share
// deleted_ref 0 and collide, soft-deleted rows carry their own id and never
// do. MySQL has no partial indexes, so the same DDL serves every dialect.
func createLiveUniqueIndexes(db *gorm.DB) error {
	for _, ix := range []struct {
		model any
		name  string
		ddl   string
	}{
		{&inventory.Category{}, "ux_categories_live_name",
			"CREATE UNIQUE INDEX ux_categories_live_name ON categories(name, deleted_ref)"},
		{&inventory.Product{}, "ux_products_live_sku",
			"CREATE UNIQUE INDEX ux_products_live_sku ON products(sku, deleted_ref)"},
		{&inventory.Supplier{}, "ux_suppliers_live_email",
			"CREATE UNIQUE INDEX ux_suppliers_live_email ON suppliers(email, deleted_ref)"},
	} {
		if db.Migrator().HasIndex(ix.model, ix.name) {
			continue
		}
		if err := db.Exec(ix.ddl).Error; err != nil {
			return err
		}
	}
	return nil
}

// Compile-time check that UnitOfWork implements the domain port.
var _ inventory.UnitOfWork = (*UnitOfWork)(nil)
