package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecificationDefaults(t *testing.T) {
	s := NewSpecification[productRow]()

	require.NoError(t, s.Err())
	assert.Nil(t, s.Criteria())
	assert.Empty(t, s.Includes())
	assert.False(t, s.Tracking())
	assert.False(t, s.IncludesDeleted())

	_, _, hasOrder := s.Order()
	assert.False(t, hasOrder)
	_, _, paging := s.Paging()
	assert.False(t, paging)
}

func TestWhereAndsSuccessiveCriteria(t *testing.T) {
	s := NewSpecification[*productRow]().
		Where(Eq("category_id", int64(1))).
		Where(Gt("current_stock", 0))

	matching := &productRow{baseRow: baseRow{ID: 1}, CategoryID: 1, CurrentStock: 5}
	wrongCategory := &productRow{baseRow: baseRow{ID: 2}, CategoryID: 2, CurrentStock: 5}
	outOfStock := &productRow{baseRow: baseRow{ID: 3}, CategoryID: 1, CurrentStock: 0}

	assert.True(t, s.Matches(matching))
	assert.False(t, s.Matches(wrongCategory))
	assert.False(t, s.Matches(outOfStock))
}

func TestEmptySpecificationMatchesEverything(t *testing.T) {
	s := NewSpecification[*productRow]()
	assert.True(t, s.Matches(&productRow{}))
}

func TestConflictingOrderIsRejected(t *testing.T) {
	s := NewSpecification[productRow]().
		OrderBy("name").
		OrderByDescending("price_cents")

	require.Error(t, s.Err())
	// the first ordering wins and is preserved
	column, desc, ok := s.Order()
	assert.True(t, ok)
	assert.Equal(t, "name", column)
	assert.False(t, desc)
}

func TestIncludeRejectsDottedPaths(t *testing.T) {
	s := NewSpecification[productRow]().Include("ProductSuppliers.Supplier")
	require.Error(t, s.Err())

	s2 := NewSpecification[productRow]().IncludePath("ProductSuppliers.Supplier")
	require.NoError(t, s2.Err())
	assert.Equal(t, []string{"ProductSuppliers.Supplier"}, s2.Includes())
}

func TestPageValidation(t *testing.T) {
	require.Error(t, NewSpecification[productRow]().Page(-1, 10).Err())
	require.Error(t, NewSpecification[productRow]().Page(0, 0).Err())

	s := NewSpecification[productRow]().Page(20, 10)
	require.NoError(t, s.Err())
	skip, take, enabled := s.Paging()
	assert.True(t, enabled)
	assert.Equal(t, 20, skip)
	assert.Equal(t, 10, take)
}

func TestFirstBuilderErrorWins(t *testing.T) {
	s := NewSpecification[productRow]().
		Page(-1, 10).
		OrderBy("name").
		OrderByDescending("name")

	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "paging")
}

func TestTrackingAndDeletedFlags(t *testing.T) {
	s := NewSpecification[productRow]().WithTracking().WithDeleted()
	assert.True(t, s.Tracking())
	assert.True(t, s.IncludesDeleted())
}
