package shared

import (
	"reflect"
	"strings"
	"time"
)

// Criteria is a composable, store-independent query predicate.
// A criteria tree is built from column conditions combined with And/Or/Not;
// every node operates on one entity type, so combining two predicates is
// plain tree composition with no parameter rebinding.
//
// Matches evaluates the predicate in memory. It is used by mock repositories
// and by tests that verify a combined tree selects the exact set-intersection
// of its parts; the store evaluator renders the same tree to SQL.
type Criteria interface {
	Matches(entity any) bool
}

// Operator enumerates the comparison operators a Condition supports.
type Operator string

const (
	OpEq       Operator = "="
	OpNe       Operator = "<>"
	OpGt       Operator = ">"
	OpGe       Operator = ">="
	OpLt       Operator = "<"
	OpLe       Operator = "<="
	OpContains Operator = "contains"
	OpIn       Operator = "in"
	OpBetween  Operator = "between"
	OpIsNull   Operator = "is null"
)

// Condition is a leaf predicate over a single column.
// Column uses the database column name (snake_case); Matches resolves it
// against struct fields by name.
type Condition struct {
	Column string
	Op     Operator
	Value  any
	Upper  any   // between only
	Values []any // in only
}

// ============================================================================
// Leaf constructors
// ============================================================================

func Eq(column string, value any) Criteria { return Condition{Column: column, Op: OpEq, Value: value} }
func Ne(column string, value any) Criteria { return Condition{Column: column, Op: OpNe, Value: value} }
func Gt(column string, value any) Criteria { return Condition{Column: column, Op: OpGt, Value: value} }
func Ge(column string, value any) Criteria { return Condition{Column: column, Op: OpGe, Value: value} }
func Lt(column string, value any) Criteria { return Condition{Column: column, Op: OpLt, Value: value} }
func Le(column string, value any) Criteria { return Condition{Column: column, Op: OpLe, Value: value} }
func Contains(column, substr string) Criteria {
	return Condition{Column: column, Op: OpContains, Value: substr}
}
func In(column string, values ...any) Criteria {
	return Condition{Column: column, Op: OpIn, Values: values}
}
func Between(column string, lo, hi any) Criteria {
	return Condition{Column: column, Op: OpBetween, Value: lo, Upper: hi}
}
func IsNull(column string) Criteria { return Condition{Column: column, Op: OpIsNull} }

// ============================================================================
// Composite criteria
// ============================================================================

// AndCriteria represents the logical AND of two criteria
type AndCriteria struct {
	Left  Criteria
	Right Criteria
}

func (c AndCriteria) Matches(entity any) bool {
	return c.Left.Matches(entity) && c.Right.Matches(entity)
}

// And combines two criteria; a nil side is treated as match-everything.
func And(left, right Criteria) Criteria {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return AndCriteria{Left: left, Right: right}
}

// OrCriteria represents the logical OR of two criteria
type OrCriteria struct {
	Left  Criteria
	Right Criteria
}

func (c OrCriteria) Matches(entity any) bool {
	return c.Left.Matches(entity) || c.Right.Matches(entity)
}

// Or combines two criteria; a nil side is treated as match-everything.
func Or(left, right Criteria) Criteria {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return OrCriteria{Left: left, Right: right}
}

// NotCriteria represents the logical NOT of a criteria
type NotCriteria struct {
	Inner Criteria
}

func (c NotCriteria) Matches(entity any) bool {
	return !c.Inner.Matches(entity)
}

func Not(inner Criteria) Criteria {
	return NotCriteria{Inner: inner}
}

// ============================================================================
// In-memory evaluation
// ============================================================================

func (c Condition) Matches(entity any) bool {
	field, ok := fieldByColumn(entity, c.Column)
	switch c.Op {
	case OpIsNull:
		if !ok {
			return true
		}
		return isNilValue(field)
	}
	if !ok {
		return false
	}
	actual := field.Interface()

	switch c.Op {
	case OpEq:
		return compare(actual, c.Value) == 0
	case OpNe:
		return compare(actual, c.Value) != 0
	case OpGt:
		return compare(actual, c.Value) > 0
	case OpGe:
		return compare(actual, c.Value) >= 0
	case OpLt:
		return compare(actual, c.Value) < 0
	case OpLe:
		return compare(actual, c.Value) <= 0
	case OpContains:
		s, ok1 := actual.(string)
		sub, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case OpIn:
		for _, v := range c.Values {
			if compare(actual, v) == 0 {
				return true
			}
		}
		return false
	case OpBetween:
		return compare(actual, c.Value) >= 0 && compare(actual, c.Upper) <= 0
	}
	return false
}

// fieldByColumn resolves a snake_case column name against the struct's
// fields, walking embedded structs (the audit base in particular).
func fieldByColumn(entity any, column string) (reflect.Value, bool) {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	want := strings.ReplaceAll(strings.ToLower(column), "_", "")
	return findField(rv, want)
}

func findField(rv reflect.Value, want string) (reflect.Value, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if inner, ok := findField(rv.Field(i), want); ok {
				return inner, true
			}
			continue
		}
		if strings.ToLower(f.Name) == want {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// compare orders two scalar values: -1, 0, or 1. Mixed numeric widths are
// normalized; incomparable values compare as unequal (-1).
func compare(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
		return -1
	}

	av, aok := toFloat(a)
	bv, bok := toFloat(b)
	if aok && bok {
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}

	as, aok2 := a.(string)
	bs, bok2 := b.(string)
	if aok2 && bok2 {
		return strings.Compare(as, bs)
	}

	ab, aok3 := a.(bool)
	bb, bok3 := b.(bool)
	if aok3 && bok3 {
		if ab == bb {
			return 0
		}
		return -1
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	return -1
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
