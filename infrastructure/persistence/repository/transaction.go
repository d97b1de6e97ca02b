package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"
	"stockroom/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// localTransaction wraps a single-database GORM transaction behind the
// uniform Transaction contract. Completion is idempotency-guarded and Close
// rolls back when the caller forgot to complete explicitly.
type localTransaction struct {
	mu        sync.Mutex
	tx        *gorm.DB
	uow       *UnitOfWork
	completed bool
}

func (t *localTransaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return shared.ErrTransactionCompleted
	}
	t.completed = true
	t.detach()

	if err := ctx.Err(); err != nil {
		t.tx.Rollback()
		return timeoutOrErr(err)
	}
	if err := t.tx.Commit().Error; err != nil {
		// The branch must not stay open: completed is already set, so no
		// later Rollback would reach the underlying transaction.
		t.tx.Rollback()
		return classifyStoreError(err, "transaction")
	}
	return nil
}

func (t *localTransaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return shared.ErrTransactionCompleted
	}
	t.completed = true
	t.detach()

	if err := t.tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classifyStoreError(err, "transaction")
	}
	return nil
}

// Close rolls the transaction back when neither Commit nor Rollback was
// called. Closing a completed transaction is a no-op.
func (t *localTransaction) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return nil
	}
	t.completed = true
	t.detach()
	logger.Warn("transaction closed without explicit completion, rolling back")
	if err := t.tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classifyStoreError(err, "transaction")
	}
	return nil
}

func (t *localTransaction) detach() {
	if t.uow != nil && t.uow.activeTx == t {
		t.uow.activeTx = nil
	}
}

// ============================================================================
// Distributed transactions
// ============================================================================

// Resource is one transactional participant of a distributed transaction.
// A unit of work's branch transaction is the usual participant; anything
// else with commit/rollback semantics can enlist too.
type Resource interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DistributedTransaction coordinates several transactional resources under
// one completion decision. Resources commit in enlistment order; the first
// commit failure rolls the remaining resources back. This is best-effort
// coordination, not two-phase commit: a resource that fails after earlier
// ones committed cannot un-commit them, which the commit error reports.
//
// The coordinator travels through an explicit context object rather than any
// ambient or goroutine-local state; nested BeginDistributedTransaction calls
// with ScopeRequired join it.
type DistributedTransaction struct {
	mu        sync.Mutex
	resources []Resource
	completed bool
	cancel    context.CancelFunc
	deadline  context.Context
}

type coordinatorKey struct{}

// CoordinatorFromContext returns the active distributed transaction, if any.
func CoordinatorFromContext(ctx context.Context) *DistributedTransaction {
	if dt, ok := ctx.Value(coordinatorKey{}).(*DistributedTransaction); ok {
		return dt
	}
	return nil
}

func contextWithCoordinator(ctx context.Context, dt *DistributedTransaction) context.Context {
	return context.WithValue(ctx, coordinatorKey{}, dt)
}

// Enlist adds a participant. Enlisting after completion fails.
func (t *DistributedTransaction) Enlist(r Resource) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return shared.ErrTransactionCompleted
	}
	t.resources = append(t.resources, r)
	return nil
}

func (t *DistributedTransaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return shared.ErrTransactionCompleted
	}
	t.completed = true
	defer t.release()

	if err := t.expired(ctx); err != nil {
		t.rollbackAll(ctx, 0)
		return err
	}

	for i, r := range t.resources {
		if err := r.Commit(ctx); err != nil {
			// The sweep starts at the failed resource: a branch rolls its own
			// transaction back on commit failure and then reports completed,
			// but a foreign resource may still want the rollback.
			t.rollbackAll(ctx, i)
			if i > 0 {
				logger.Error("distributed commit failed after earlier participants committed",
					zap.Int("committed", i), zap.Error(err))
			}
			return classifyStoreError(err, "distributed transaction")
		}
	}
	return nil
}

func (t *DistributedTransaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return shared.ErrTransactionCompleted
	}
	t.completed = true
	defer t.release()

	t.rollbackAll(ctx, 0)
	return nil
}

// Close rolls back when the transaction was never completed explicitly.
func (t *DistributedTransaction) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return nil
	}
	t.completed = true
	defer t.release()
	logger.Warn("distributed transaction closed without explicit completion, rolling back")
	t.rollbackAll(context.Background(), 0)
	return nil
}

func (t *DistributedTransaction) expired(ctx context.Context) error {
	if t.deadline != nil && t.deadline.Err() != nil {
		return timeoutOrErr(t.deadline.Err())
	}
	if ctx.Err() != nil {
		return timeoutOrErr(ctx.Err())
	}
	return nil
}

func (t *DistributedTransaction) rollbackAll(ctx context.Context, from int) {
	for _, r := range t.resources[from:] {
		err := r.Rollback(ctx)
		if err != nil && !errors.Is(err, sql.ErrTxDone) && !errors.Is(err, shared.ErrTransactionCompleted) {
			logger.Error("distributed rollback failed for a participant", zap.Error(err))
		}
	}
}

func (t *DistributedTransaction) release() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// timeoutOrErr maps an exceeded deadline to the transaction timeout error so
// callers can tell a timeout from a genuine conflict.
func timeoutOrErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.NewTransactionTimeoutError("transaction")
	}
	return err
}

var (
	_ inventory.Transaction = (*localTransaction)(nil)
	_ inventory.Transaction = (*DistributedTransaction)(nil)
	_ Resource              = (*localTransaction)(nil)
)
