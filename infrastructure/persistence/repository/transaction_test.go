package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributedCommitSpansTwoStores(t *testing.T) {
	u1 := newTestUnitOfWork(t)
	u2 := newTestUnitOfWork(t)
	ctx := testContext()

	dt, txCtx, err := u1.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{
		Scope: inventory.ScopeRequiresNew,
	})
	require.NoError(t, err)

	joined, joinedCtx, err := u2.BeginDistributedTransaction(txCtx, inventory.DistributedTxOptions{
		Scope: inventory.ScopeRequired,
	})
	require.NoError(t, err)
	assert.Same(t, dt, joined)

	c1 := &inventory.Category{Name: "StoreOne"}
	require.True(t, u1.Categories().Add(joinedCtx, c1).IsSuccess)
	require.True(t, u1.SaveChanges(joinedCtx).IsSuccess)

	c2 := &inventory.Category{Name: "StoreTwo"}
	require.True(t, u2.Categories().Add(joinedCtx, c2).IsSuccess)
	require.True(t, u2.SaveChanges(joinedCtx).IsSuccess)

	require.NoError(t, dt.Commit(ctx))

	assert.True(t, u1.Categories().GetByID(ctx, c1.ID, false).IsSuccess)
	assert.True(t, u2.Categories().GetByID(ctx, c2.ID, false).IsSuccess)
}

func TestDistributedRollbackSpansTwoStores(t *testing.T) {
	u1 := newTestUnitOfWork(t)
	u2 := newTestUnitOfWork(t)
	ctx := testContext()

	dt, txCtx, err := u1.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{})
	require.NoError(t, err)
	_, joinedCtx, err := u2.BeginDistributedTransaction(txCtx, inventory.DistributedTxOptions{})
	require.NoError(t, err)

	require.True(t, u1.Categories().Add(joinedCtx, &inventory.Category{Name: "Gone1"}).IsSuccess)
	require.True(t, u1.SaveChanges(joinedCtx).IsSuccess)
	require.True(t, u2.Categories().Add(joinedCtx, &inventory.Category{Name: "Gone2"}).IsSuccess)
	require.True(t, u2.SaveChanges(joinedCtx).IsSuccess)

	require.NoError(t, dt.Rollback(ctx))

	count1 := u1.Categories().CountBy(ctx, shared.Eq("name", "Gone1"))
	count2 := u2.Categories().CountBy(ctx, shared.Eq("name", "Gone2"))
	require.True(t, count1.IsSuccess)
	require.True(t, count2.IsSuccess)
	assert.Equal(t, int64(0), count1.Value)
	assert.Equal(t, int64(0), count2.Value)
}

// stubResource is a non-database participant with a scriptable commit.
type stubResource struct {
	commitErr  error
	rolledBack bool
}

func (s *stubResource) Commit(ctx context.Context) error { return s.commitErr }

func (s *stubResource) Rollback(ctx context.Context) error {
	s.rolledBack = true
	return nil
}

func TestDistributedCommitFailureRollsBackLaterParticipants(t *testing.T) {
	u1 := newTestUnitOfWork(t)
	u2 := newTestUnitOfWork(t)
	ctx := testContext()

	dt, txCtx, err := u1.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{})
	require.NoError(t, err)

	stub := &stubResource{commitErr: errors.New("participant refused")}
	require.NoError(t, CoordinatorFromContext(txCtx).Enlist(stub))

	_, joinedCtx, err := u2.BeginDistributedTransaction(txCtx, inventory.DistributedTxOptions{})
	require.NoError(t, err)

	require.True(t, u1.Categories().Add(joinedCtx, &inventory.Category{Name: "Early"}).IsSuccess)
	require.True(t, u1.SaveChanges(joinedCtx).IsSuccess)
	require.True(t, u2.Categories().Add(joinedCtx, &inventory.Category{Name: "Late"}).IsSuccess)
	require.True(t, u2.SaveChanges(joinedCtx).IsSuccess)

	require.Error(t, dt.Commit(ctx))

	// best-effort coordination: the participant before the failure stays
	// committed, everything from the failure onward is rolled back
	assert.True(t, stub.rolledBack)

	early := u1.Categories().CountBy(ctx, shared.Eq("name", "Early"))
	require.True(t, early.IsSuccess)
	assert.Equal(t, int64(1), early.Value)

	late := u2.Categories().CountBy(ctx, shared.Eq("name", "Late"))
	require.True(t, late.IsSuccess)
	assert.Equal(t, int64(0), late.Value)
}

func TestBranchCommitFailureReleasesItsTransaction(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	tx := u.db.Begin()
	require.NoError(t, tx.Error)
	branch := &localTransaction{tx: tx, uow: u}
	u.activeTx = branch

	// finish the database side out from under the branch so its commit fails
	raw, ok := tx.Statement.ConnPool.(*sql.Tx)
	require.True(t, ok)
	require.NoError(t, raw.Rollback())

	require.Error(t, branch.Commit(ctx))
	assert.Nil(t, u.activeTx)
	assert.ErrorIs(t, branch.Rollback(ctx), shared.ErrTransactionCompleted)

	// the single test connection answers ordinary work again
	count := u.Categories().CountBy(ctx, shared.Eq("name", "whatever"))
	require.True(t, count.IsSuccess)
}

func TestScopeRequiresNewIgnoresAmbientCoordinator(t *testing.T) {
	u1 := newTestUnitOfWork(t)
	u2 := newTestUnitOfWork(t)
	ctx := testContext()

	dt1, txCtx, err := u1.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{})
	require.NoError(t, err)
	defer dt1.Close()

	dt2, _, err := u2.BeginDistributedTransaction(txCtx, inventory.DistributedTxOptions{
		Scope: inventory.ScopeRequiresNew,
	})
	require.NoError(t, err)
	defer dt2.Close()

	assert.NotSame(t, dt1, dt2)
}

func TestDistributedCompletionIsIdempotencyGuarded(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	dt, _, err := u.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{})
	require.NoError(t, err)

	require.NoError(t, dt.Commit(ctx))
	assert.ErrorIs(t, dt.Commit(ctx), shared.ErrTransactionCompleted)
	assert.ErrorIs(t, dt.Rollback(ctx), shared.ErrTransactionCompleted)
	assert.NoError(t, dt.Close())
}

func TestDistributedTimeoutFailsCommit(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	dt, txCtx, err := u.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{
		Timeout: 15 * time.Millisecond,
	})
	require.NoError(t, err)

	require.True(t, u.Categories().Add(txCtx, &inventory.Category{Name: "TooSlow"}).IsSuccess)
	require.True(t, u.SaveChanges(txCtx).IsSuccess)

	time.Sleep(40 * time.Millisecond)

	err = dt.Commit(ctx)
	require.ErrorIs(t, err, shared.ErrTransactionTimeout)

	count := u.Categories().CountBy(ctx, shared.Eq("name", "TooSlow"))
	require.True(t, count.IsSuccess)
	assert.Equal(t, int64(0), count.Value)
}

func TestDistributedCloseRollsBack(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	dt, txCtx, err := u.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{})
	require.NoError(t, err)

	require.True(t, u.Categories().Add(txCtx, &inventory.Category{Name: "Unfinished"}).IsSuccess)
	require.True(t, u.SaveChanges(txCtx).IsSuccess)

	require.NoError(t, dt.Close())

	count := u.Categories().CountBy(ctx, shared.Eq("name", "Unfinished"))
	require.True(t, count.IsSuccess)
	assert.Equal(t, int64(0), count.Value)
}

func TestCoordinatorTravelsThroughContextOnly(t *testing.T) {
	u := newTestUnitOfWork(t)
	ctx := testContext()

	assert.Nil(t, CoordinatorFromContext(ctx))

	dt, txCtx, err := u.BeginDistributedTransaction(ctx, inventory.DistributedTxOptions{})
	require.NoError(t, err)
	defer dt.Close()

	assert.Same(t, dt, CoordinatorFromContext(txCtx))
	assert.Nil(t, CoordinatorFromContext(ctx))
}
