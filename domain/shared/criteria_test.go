package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type baseRow struct {
	ID        int64
	IsDeleted bool
}

type productRow struct {
	baseRow
	Name         string
	SKU          string
	PriceCents   int64
	CurrentStock int
	CategoryID   int64
	DeletedNote  *string
	AddedAt      time.Time
}

func sampleRow() *productRow {
	return &productRow{
		baseRow:      baseRow{ID: 7},
		Name:         "Cold Brew Concentrate",
		SKU:          "BEV-CB-001",
		PriceCents:   1299,
		CurrentStock: 42,
		CategoryID:   3,
		AddedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestConditionOperators(t *testing.T) {
	row := sampleRow()

	cases := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"eq match", Eq("category_id", int64(3)), true},
		{"eq mismatch", Eq("category_id", int64(4)), false},
		{"eq mixed numeric widths", Eq("current_stock", int64(42)), true},
		{"ne", Ne("sku", "OTHER"), true},
		{"gt", Gt("price_cents", 1000), true},
		{"gt boundary", Gt("price_cents", 1299), false},
		{"ge boundary", Ge("price_cents", 1299), true},
		{"lt", Lt("current_stock", 100), true},
		{"le boundary", Le("current_stock", 42), true},
		{"contains is case insensitive", Contains("name", "cold brew"), true},
		{"contains mismatch", Contains("name", "espresso"), false},
		{"in hit", In("category_id", int64(1), int64(3)), true},
		{"in miss", In("category_id", int64(1), int64(2)), false},
		{"in empty", In("category_id"), false},
		{"between inclusive", Between("price_cents", 1299, 2000), true},
		{"between outside", Between("price_cents", 1300, 2000), false},
		{"is null on nil pointer", IsNull("deleted_note"), true},
		{"unknown column never matches", Eq("no_such_column", 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.c.Matches(row))
		})
	}
}

func TestConditionResolvesEmbeddedFields(t *testing.T) {
	row := sampleRow()
	assert.True(t, Eq("id", int64(7)).Matches(row))
	assert.True(t, Eq("is_deleted", false).Matches(row))
}

func TestConditionTimeComparison(t *testing.T) {
	row := sampleRow()
	before := row.AddedAt.Add(-time.Hour)
	after := row.AddedAt.Add(time.Hour)

	assert.True(t, Gt("added_at", before).Matches(row))
	assert.True(t, Between("added_at", before, after).Matches(row))
	assert.False(t, Lt("added_at", before).Matches(row))
}

// A combined tree must select exactly the intersection (AND) or union (OR)
// of what its parts select, with no parameter interference between sides.
func TestCompositeSelectsExactSet(t *testing.T) {
	rows := []*productRow{
		{baseRow: baseRow{ID: 1}, CategoryID: 1, CurrentStock: 0},
		{baseRow: baseRow{ID: 2}, CategoryID: 1, CurrentStock: 10},
		{baseRow: baseRow{ID: 3}, CategoryID: 2, CurrentStock: 10},
		{baseRow: baseRow{ID: 4}, CategoryID: 2, CurrentStock: 0},
	}
	left := Eq("category_id", int64(1))
	right := Gt("current_stock", 0)

	matching := func(c Criteria) []int64 {
		var ids []int64
		for _, r := range rows {
			if c.Matches(r) {
				ids = append(ids, r.ID)
			}
		}
		return ids
	}

	assert.Equal(t, []int64{2}, matching(And(left, right)))
	assert.Equal(t, []int64{1, 2, 3}, matching(Or(left, right)))
	assert.Equal(t, []int64{3, 4}, matching(Not(left)))
}

func TestCombinatorsTolerateNilSides(t *testing.T) {
	c := Eq("id", int64(1))

	assert.Equal(t, c, And(nil, c))
	assert.Equal(t, c, And(c, nil))
	assert.Equal(t, c, Or(nil, c))
	assert.Nil(t, And(nil, nil))
}
