// Package repository implements the generic data-access engine, the
// per-entity repositories and the unit of work over GORM.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"
	"stockroom/infrastructure/cache"
	"stockroom/infrastructure/persistence"
	"stockroom/infrastructure/persistence/specification"

	"gorm.io/gorm"
)

// Engine is the generic storage engine parameterized over one entity type.
// Entity-specific repositories wrap an Engine and add domain queries;
// there is no inheritance chain.
//
// Reads go straight to the store (or through the cache for the OrCache
// variants) and always exclude soft-deleted rows unless a specification
// bypasses the filter. Writes are queued on the owning unit of work and
// applied at SaveChanges, where the audit interceptor stamps them.
type Engine[T any] struct {
	uow   *UnitOfWork
	cache cache.Service
	table string
	name  string
}

func newEngine[T any](uow *UnitOfWork, table, name string) *Engine[T] {
	var zero T
	if _, ok := any(&zero).(inventory.Entity); !ok {
		panic(fmt.Sprintf("repository: %T does not embed inventory.BaseEntity", zero))
	}
	return &Engine[T]{uow: uow, cache: uow.cache, table: table, name: name}
}

// session resolves the query target: an explicit context transaction first,
// then the unit of work's active transaction, then the shared session.
func (e *Engine[T]) session(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	if e.uow.activeTx != nil {
		return e.uow.activeTx.tx.WithContext(ctx)
	}
	return e.uow.db.WithContext(ctx)
}

func (e *Engine[T]) baseQuery(ctx context.Context, includeDeleted bool) *gorm.DB {
	db := e.session(ctx).Model(new(T))
	if !includeDeleted {
		db = db.Where("is_deleted = ?", false)
	}
	return db
}

// ============================================================================
// Reads
// ============================================================================

func (e *Engine[T]) GetByID(ctx context.Context, id int64, trackChanges bool) shared.Result[*T] {
	if err := ctx.Err(); err != nil {
		return failure[*T](ctx, e.name, err)
	}

	db := e.baseQuery(ctx, false)
	if !trackChanges {
		db = db.Session(&gorm.Session{})
	}

	var row T
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NotFound[*T](e.name)
		}
		return failure[*T](ctx, e.name, err)
	}
	return shared.Ok(&row)
}

func (e *Engine[T]) GetAll(ctx context.Context) shared.Result[[]*T] {
	return e.Find(ctx, nil)
}

func (e *Engine[T]) Find(ctx context.Context, spec *shared.Specification[T]) shared.Result[[]*T] {
	rows, err := e.find(ctx, spec)
	if err != nil {
		return failure[[]*T](ctx, e.name, err)
	}
	return shared.Ok(rows)
}

func (e *Engine[T]) FindBy(ctx context.Context, criteria shared.Criteria) shared.Result[[]*T] {
	return e.Find(ctx, shared.NewSpecification[T]().Where(criteria))
}

// find is the uncached query path shared by Find and the cache fill.
// An empty result set is not an error.
func (e *Engine[T]) find(ctx context.Context, spec *shared.Specification[T]) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := specification.Apply(e.baseQuery(ctx, spec != nil && spec.IncludesDeleted()), spec)
	if err != nil {
		return nil, shared.NewValidationError(e.name, "specification", err.Error())
	}

	var rows []*T
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*T{}
	}
	return rows, nil
}

func (e *Engine[T]) FirstOrDefault(ctx context.Context, spec *shared.Specification[T]) shared.Result[*T] {
	if err := ctx.Err(); err != nil {
		return failure[*T](ctx, e.name, err)
	}

	db, err := specification.Apply(e.baseQuery(ctx, spec != nil && spec.IncludesDeleted()), spec)
	if err != nil {
		return shared.ValidationFailed[*T](err.Error())
	}

	var row T
	if err := db.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NotFound[*T](e.name)
		}
		return failure[*T](ctx, e.name, err)
	}
	return shared.Ok(&row)
}

func (e *Engine[T]) Count(ctx context.Context, spec *shared.Specification[T]) shared.Result[int64] {
	if spec == nil {
		return e.count(ctx, nil, false)
	}
	return e.count(ctx, spec.Criteria(), spec.IncludesDeleted())
}

func (e *Engine[T]) CountBy(ctx context.Context, criteria shared.Criteria) shared.Result[int64] {
	return e.count(ctx, criteria, false)
}

func (e *Engine[T]) count(ctx context.Context, criteria shared.Criteria, includeDeleted bool) shared.Result[int64] {
	if err := ctx.Err(); err != nil {
		return failure[int64](ctx, e.name, err)
	}

	db := e.baseQuery(ctx, includeDeleted)
	if criteria != nil {
		var err error
		db, err = specification.ApplyCriteria(db, criteria)
		if err != nil {
			return shared.ValidationFailed[int64](err.Error())
		}
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return failure[int64](ctx, e.name, err)
	}
	return shared.Ok(count)
}

func (e *Engine[T]) Any(ctx context.Context, spec *shared.Specification[T]) shared.Result[bool] {
	res := e.Count(ctx, spec)
	if res.IsFailure() {
		return shared.Fail[bool](res.StatusCode, res.Message, res.Errors...).WithCorrelationID(res.CorrelationID)
	}
	return shared.Ok(res.Value > 0)
}

func (e *Engine[T]) Exists(ctx context.Context, id int64) shared.Result[bool] {
	return e.Any(ctx, shared.NewSpecification[T]().Where(shared.Eq("id", id)))
}

// GetPaged executes the specification's page slice and counts the full
// filtered set; TotalCount is independent of the slice.
func (e *Engine[T]) GetPaged(ctx context.Context, spec *shared.Specification[T]) shared.Result[shared.PagedResult[*T]] {
	skip, take := 0, 0
	var criteria shared.Criteria
	includeDeleted := false
	if spec != nil {
		skip, take, _ = spec.Paging()
		criteria = spec.Criteria()
		includeDeleted = spec.IncludesDeleted()
	}

	countRes := e.count(ctx, criteria, includeDeleted)
	if countRes.IsFailure() {
		return shared.Fail[shared.PagedResult[*T]](countRes.StatusCode, countRes.Message, countRes.Errors...).
			WithCorrelationID(countRes.CorrelationID)
	}

	rows, err := e.find(ctx, spec)
	if err != nil {
		return failure[shared.PagedResult[*T]](ctx, e.name, err)
	}

	return shared.Ok(shared.PagedResult[*T]{
		Items:      rows,
		TotalCount: countRes.Value,
		Skip:       skip,
		Take:       take,
	})
}

// ============================================================================
// Writes - queued on the unit of work, applied at SaveChanges
// ============================================================================

func (e *Engine[T]) Add(ctx context.Context, entity *T) shared.Result[*T] {
	if entity == nil {
		return shared.ValidationFailed[*T]("entity is required")
	}
	if err := e.uow.enqueue(&change{
		kind:   opInsert,
		entity: any(entity).(inventory.Entity),
		value:  entity,
		model:  new(T),
		name:   e.name,
	}); err != nil {
		return shared.Fail[*T](500, err.Error())
	}
	return shared.Ok(entity)
}

func (e *Engine[T]) Update(ctx context.Context, entity *T) shared.Result[*T] {
	if entity == nil {
		return shared.ValidationFailed[*T]("entity is required")
	}
	meta := any(entity).(inventory.Entity).Meta()
	if meta.ID == 0 {
		return shared.ValidationFailed[*T]("entity has no identity, use Add for new entities")
	}
	if err := e.uow.enqueue(&change{
		kind:   opUpdate,
		entity: any(entity).(inventory.Entity),
		value:  entity,
		model:  new(T),
		name:   e.name,
	}); err != nil {
		return shared.Fail[*T](500, err.Error())
	}
	return shared.Ok(entity)
}

// Delete queues a soft delete. The id is verified against live rows first so
// callers get the 404 at call time rather than at SaveChanges.
func (e *Engine[T]) Delete(ctx context.Context, id int64) shared.Result[bool] {
	exists := e.Exists(ctx, id)
	if exists.IsFailure() {
		return exists
	}
	if !exists.Value {
		return shared.NotFound[bool](e.name)
	}
	if err := e.uow.enqueue(&change{
		kind:  opDelete,
		model: new(T),
		id:    id,
		name:  e.name,
	}); err != nil {
		return shared.Fail[bool](500, err.Error())
	}
	return shared.Ok(true)
}

// ============================================================================
// Cached reads
//
// The cache never invalidates itself on writes. Callers own invalidation:
// after any write that could make cached reads stale, call InvalidateCache
// or InvalidateCacheKey. The caller-chosen key must encode every filter and
// paging parameter that affects the result.
//
// Cached values are not copied: every hit on a key returns the same entity
// pointers. Callers treat them as read-only and reload through GetByID
// before mutating.
// ============================================================================

func (e *Engine[T]) GetOrCache(ctx context.Context, key string, ttl time.Duration, spec *shared.Specification[T]) shared.Result[[]*T] {
	rows, err := cache.GetOrCreate(ctx, e.cache, key, ttl, func(ctx context.Context) ([]*T, error) {
		return e.find(ctx, spec)
	})
	if err != nil {
		return failure[[]*T](ctx, e.name, err)
	}
	return shared.Ok(rows)
}

func (e *Engine[T]) GetByIDOrCache(ctx context.Context, key string, id int64, ttl time.Duration, includes ...string) shared.Result[*T] {
	row, err := cache.GetOrCreate(ctx, e.cache, key, ttl, func(ctx context.Context) (*T, error) {
		db := e.baseQuery(ctx, false).Where("id = ?", id)
		for _, path := range includes {
			db = db.Preload(path)
		}
		var row T
		if err := db.First(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NotFound[*T](e.name)
		}
		return failure[*T](ctx, e.name, err)
	}
	return shared.Ok(row)
}

// InvalidateCache drops every cached entry for this entity type.
func (e *Engine[T]) InvalidateCache() {
	e.cache.RemoveByPrefix(cache.EntityPrefix(e.table))
}

// InvalidateCacheKey drops one cached entry.
func (e *Engine[T]) InvalidateCacheKey(key string) {
	e.cache.Remove(key)
}

// CacheKey builds a cache key under this entity's invalidation prefix.
func (e *Engine[T]) CacheKey(method string, args ...any) string {
	return cache.Key(e.table, method, args...)
}

// Query is the escape hatch for advanced call sites: a composable query
// handle with the soft-delete filter already applied (unless bypassed).
func (e *Engine[T]) Query(ctx context.Context, includeDeleted bool) *gorm.DB {
	return e.baseQuery(ctx, includeDeleted)
}
