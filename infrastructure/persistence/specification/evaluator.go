// Package specification translates domain specifications into GORM queries.
// The domain side stays store-agnostic; this package owns all SQL rendering.
package specification

import (
	"fmt"
	"strings"

	"stockroom/domain/shared"

	"gorm.io/gorm"
)

// Apply turns a base query plus a specification into an executable query.
// The order is load-bearing: tracking mode, then criteria, then ordering,
// then grouping, then includes, then paging. Includes before paging keeps
// to-many navigations complete on the selected page; filtering before
// grouping lets the store push the predicate down.
func Apply[T any](db *gorm.DB, spec *shared.Specification[T]) (*gorm.DB, error) {
	if spec == nil {
		return db, nil
	}
	if err := spec.Err(); err != nil {
		return nil, err
	}

	if !spec.Tracking() {
		db = db.Session(&gorm.Session{})
	}

	if spec.Criteria() != nil {
		var err error
		db, err = ApplyCriteria(db, spec.Criteria())
		if err != nil {
			return nil, err
		}
	}

	if column, desc, ok := spec.Order(); ok {
		if err := validateIdentifier(column); err != nil {
			return nil, err
		}
		if desc {
			db = db.Order(column + " DESC")
		} else {
			db = db.Order(column)
		}
	}

	if column, ok := spec.Group(); ok {
		if err := validateIdentifier(column); err != nil {
			return nil, err
		}
		db = db.Group(column)
	}

	for _, path := range spec.Includes() {
		db = db.Preload(path)
	}

	if skip, take, enabled := spec.Paging(); enabled {
		db = db.Offset(skip).Limit(take)
	}

	return db, nil
}

// ApplyCriteria renders a criteria tree into a single WHERE clause.
func ApplyCriteria(db *gorm.DB, c shared.Criteria) (*gorm.DB, error) {
	clause, args, err := Render(c)
	if err != nil {
		return nil, err
	}
	if clause == "" {
		return db, nil
	}
	return db.Where(clause, args...), nil
}

// Render produces a parameterized SQL fragment for a criteria tree.
// Composites parenthesize both sides so operator precedence never leaks.
func Render(c shared.Criteria) (string, []any, error) {
	switch node := c.(type) {
	case nil:
		return "", nil, nil
	case shared.Condition:
		return renderCondition(node)
	case shared.AndCriteria:
		return renderPair(node.Left, node.Right, "AND")
	case shared.OrCriteria:
		return renderPair(node.Left, node.Right, "OR")
	case shared.NotCriteria:
		inner, args, err := Render(node.Inner)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", args, nil
	default:
		return "", nil, fmt.Errorf("specification: unsupported criteria node %T", c)
	}
}

func renderPair(left, right shared.Criteria, op string) (string, []any, error) {
	l, largs, err := Render(left)
	if err != nil {
		return "", nil, err
	}
	r, rargs, err := Render(right)
	if err != nil {
		return "", nil, err
	}
	return "(" + l + ") " + op + " (" + r + ")", append(largs, rargs...), nil
}

func renderCondition(c shared.Condition) (string, []any, error) {
	if err := validateIdentifier(c.Column); err != nil {
		return "", nil, err
	}

	switch c.Op {
	case shared.OpEq, shared.OpNe, shared.OpGt, shared.OpGe, shared.OpLt, shared.OpLe:
		return fmt.Sprintf("%s %s ?", c.Column, c.Op), []any{c.Value}, nil
	case shared.OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("specification: contains on %s requires a string value", c.Column)
		}
		// SQLite's LIKE has no default escape character, so the escape must
		// be declared explicitly; MySQL accepts the clause as well.
		return c.Column + ` LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(s) + "%"}, nil
	case shared.OpIn:
		if len(c.Values) == 0 {
			// empty IN matches nothing
			return "1 = 0", nil, nil
		}
		return c.Column + " IN ?", []any{c.Values}, nil
	case shared.OpBetween:
		return c.Column + " BETWEEN ? AND ?", []any{c.Value, c.Upper}, nil
	case shared.OpIsNull:
		return c.Column + " IS NULL", nil, nil
	default:
		return "", nil, fmt.Errorf("specification: unsupported operator %q", c.Op)
	}
}

// validateIdentifier rejects anything that is not a plain column reference,
// keeping user input out of the non-parameterized query parts.
func validateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("specification: empty column name")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return fmt.Errorf("specification: invalid column name %q", name)
		}
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
