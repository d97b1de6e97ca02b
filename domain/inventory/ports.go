package inventory

import (
	"context"
	"database/sql"
	"time"

	"stockroom/domain/shared"
)

// Repository is the generic contract every entity repository satisfies.
// Expected failures (missing rows, conflicts, store errors) travel as Result
// failures; an empty result set is a success.
//
// Caching contract: GetOrCache/GetByIDOrCache never invalidate on write.
// Callers must call InvalidateCache or InvalidateCacheKey after any write
// that could make cached reads stale, and the caller-chosen key must encode
// every filter/paging parameter that affects the result. Cached entities are
// shared by every hit on the same key: treat them as read-only, and reload
// through GetByID before mutating or queueing an Update.
type Repository[T any] interface {
	// GetByID returns the live entity or a 404 failure when it is absent or
	// soft-deleted. trackChanges opts into a tracked session.
	GetByID(ctx context.Context, id int64, trackChanges bool) shared.Result[*T]

	// GetAll returns every live entity.
	GetAll(ctx context.Context) shared.Result[[]*T]

	// Find executes a full specification.
	Find(ctx context.Context, spec *shared.Specification[T]) shared.Result[[]*T]

	// FindBy executes a bare criteria tree with default options.
	FindBy(ctx context.Context, criteria shared.Criteria) shared.Result[[]*T]

	// FirstOrDefault returns the first match or a 404 failure when none match.
	FirstOrDefault(ctx context.Context, spec *shared.Specification[T]) shared.Result[*T]

	// Count counts specification matches; CountBy counts criteria matches.
	Count(ctx context.Context, spec *shared.Specification[T]) shared.Result[int64]
	CountBy(ctx context.Context, criteria shared.Criteria) shared.Result[int64]

	// Any reports whether at least one entity matches the specification.
	Any(ctx context.Context, spec *shared.Specification[T]) shared.Result[bool]

	// Exists is the cheap by-id existence check, soft-delete filtered.
	Exists(ctx context.Context, id int64) shared.Result[bool]

	// GetPaged returns one page plus the total match count.
	GetPaged(ctx context.Context, spec *shared.Specification[T]) shared.Result[shared.PagedResult[*T]]

	// Add queues the entity for insert on the owning unit of work.
	// Audit fields are stamped at the persistence boundary, not here.
	Add(ctx context.Context, entity *T) shared.Result[*T]

	// Update queues the entity for an optimistic-concurrency update.
	Update(ctx context.Context, entity *T) shared.Result[*T]

	// Delete queues a soft delete; the row is never physically removed.
	Delete(ctx context.Context, id int64) shared.Result[bool]

	// GetOrCache executes the specification read-through the cache under the
	// caller-chosen key; ttl <= 0 uses the cache default.
	GetOrCache(ctx context.Context, key string, ttl time.Duration, spec *shared.Specification[T]) shared.Result[[]*T]

	// GetByIDOrCache is the by-id read-through variant.
	GetByIDOrCache(ctx context.Context, key string, id int64, ttl time.Duration, includes ...string) shared.Result[*T]

	// InvalidateCache drops every cached entry for this entity type.
	InvalidateCache()

	// InvalidateCacheKey drops one cached entry.
	InvalidateCacheKey(key string)
}

// CategoryRepository adds category-specific queries.
type CategoryRepository interface {
	Repository[Category]

	// NameExists reports whether a live category other than excludeID already
	// uses the name. excludeID 0 checks all live rows.
	NameExists(ctx context.Context, name string, excludeID int64) shared.Result[bool]

	FindActive(ctx context.Context) shared.Result[[]*Category]
}

// ProductRepository adds product-specific queries and the stock invariant.
type ProductRepository interface {
	Repository[Product]

	SKUExists(ctx context.Context, sku string, excludeID int64) shared.Result[bool]
	ByCategory(ctx context.Context, categoryID int64) shared.Result[[]*Product]
	BySupplier(ctx context.Context, supplierID int64) shared.Result[[]*Product]
	BelowReorderLevel(ctx context.Context) shared.Result[[]*Product]

	// TotalInventoryValue sums price * current stock over live products,
	// in cents.
	TotalInventoryValue(ctx context.Context) shared.Result[int64]

	// UpdateStockLevel applies a stock delta and records a movement, both
	// queued on the unit of work. A delta that would drive CurrentStock
	// negative fails with 400 and queues nothing.
	UpdateStockLevel(ctx context.Context, productID int64, delta int, reference string) shared.Result[*Product]
}

// SupplierRepository adds supplier-specific queries.
type SupplierRepository interface {
	Repository[Supplier]

	EmailExists(ctx context.Context, email string, excludeID int64) shared.Result[bool]
	SearchByName(ctx context.Context, term string) shared.Result[[]*Supplier]
}

// StockMovementRepository adds movement history queries.
type StockMovementRepository interface {
	Repository[StockMovement]

	ForProduct(ctx context.Context, productID int64) shared.Result[[]*StockMovement]
	InRange(ctx context.Context, from, to time.Time) shared.Result[[]*StockMovement]

	// RecordMovement validates and queues a history entry. A missing kind is
	// derived from the sign of QuantityChange; a missing OccurredAt defaults
	// to now. The entry persists on the next SaveChanges.
	RecordMovement(ctx context.Context, movement *StockMovement) shared.Result[*StockMovement]
}

// Transaction is the uniform handle over local and distributed transactions.
// Commit and Rollback are idempotency-guarded: completing a transaction twice
// fails with shared.ErrTransactionCompleted. Close rolls back when neither
// was called - a resource-safety net, not a substitute for explicit
// completion.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// TxScope controls whether a distributed transaction joins an already active
// coordinator from the context or always starts a new one.
type TxScope int

const (
	// ScopeRequired joins the context's coordinator when present.
	ScopeRequired TxScope = iota
	// ScopeRequiresNew always starts a new coordinator.
	ScopeRequiresNew
)

// DistributedTxOptions configures BeginDistributedTransaction.
// Zero values mean: join-unless-new scope, read-committed isolation,
// no timeout.
type DistributedTxOptions struct {
	Scope     TxScope
	Isolation sql.IsolationLevel
	Timeout   time.Duration
}

// UnitOfWork aggregates the repositories behind one transactional boundary.
// All repositories share one session; the unit of work is scoped to one
// logical operation and must not be shared across concurrent operations.
// Closing it releases the session and invalidates every repository handle
// obtained from it.
type UnitOfWork interface {
	Categories() CategoryRepository
	Products() ProductRepository
	Suppliers() SupplierRepository
	StockMovements() StockMovementRepository

	// SaveChanges applies every queued change in issue order and returns rows
	// affected. Concurrency conflicts surface as 409 failures distinct from
	// other store errors; raw store errors never escape.
	SaveChanges(ctx context.Context) shared.Result[int64]

	// BeginTransaction starts a local transaction on the session.
	// The caller must commit or roll back.
	BeginTransaction(ctx context.Context) (Transaction, error)

	// BeginDistributedTransaction starts (or joins, per scope) a coordinator
	// spanning this store and other enlisted transactional resources.
	BeginDistributedTransaction(ctx context.Context, opts DistributedTxOptions) (Transaction, context.Context, error)

	// ExecuteInTransaction runs fn, saves and commits; on any failure it
	// rolls back and returns false. The causal error is logged, not
	// returned - callers that need error detail must drive
	// BeginTransaction/Commit/Rollback themselves.
	ExecuteInTransaction(ctx context.Context, fn func(ctx context.Context) error) bool

	Close() error
}
