package shared

import (
	"errors"
	"strings"
)

// Specification describes a query over entity T: a criteria tree, eager-load
// paths, ordering, optional grouping, opt-in paging and a tracking flag.
// A specification is built per query call, handed to a repository, and
// discarded after execution.
//
// Reads are untracked by default; WithTracking opts into a tracked session
// for entities the caller intends to mutate.
type Specification[T any] struct {
	criteria       Criteria
	includes       []string
	orderColumn    string
	orderDesc      bool
	hasOrder       bool
	groupColumn    string
	skip           int
	take           int
	pagingEnabled  bool
	tracking       bool
	includeDeleted bool
	err            error
}

// NewSpecification creates an empty specification: matches everything,
// no includes, no ordering, no paging, no tracking.
func NewSpecification[T any]() *Specification[T] {
	return &Specification[T]{}
}

// Where ANDs the given criteria into the specification's predicate.
func (s *Specification[T]) Where(c Criteria) *Specification[T] {
	s.criteria = And(s.criteria, c)
	return s
}

// Include declares a single-hop navigation to eager-load.
// Multi-hop paths must use IncludePath.
func (s *Specification[T]) Include(navigation string) *Specification[T] {
	if strings.Contains(navigation, ".") {
		s.fail(errors.New("specification: Include takes a single hop, use IncludePath for " + navigation))
		return s
	}
	s.includes = append(s.includes, navigation)
	return s
}

// IncludePath declares a dotted navigation path crossing multiple hops,
// e.g. "ProductSuppliers.Supplier".
func (s *Specification[T]) IncludePath(path string) *Specification[T] {
	s.includes = append(s.includes, path)
	return s
}

// OrderBy sorts ascending by the given column. Ascending and descending
// ordering are mutually exclusive; declaring both is rejected.
func (s *Specification[T]) OrderBy(column string) *Specification[T] {
	return s.order(column, false)
}

// OrderByDescending sorts descending by the given column.
func (s *Specification[T]) OrderByDescending(column string) *Specification[T] {
	return s.order(column, true)
}

func (s *Specification[T]) order(column string, desc bool) *Specification[T] {
	if s.hasOrder {
		s.fail(errors.New("specification: ordering already declared, ascending and descending are mutually exclusive"))
		return s
	}
	s.orderColumn = column
	s.orderDesc = desc
	s.hasOrder = true
	return s
}

// GroupBy groups rows by the given column; the result is flattened back to a
// row-level sequence by the evaluator.
func (s *Specification[T]) GroupBy(column string) *Specification[T] {
	s.groupColumn = column
	return s
}

// Page enables paging. Skip is applied before Take, after filtering,
// ordering and includes.
func (s *Specification[T]) Page(skip, take int) *Specification[T] {
	if skip < 0 || take <= 0 {
		s.fail(errors.New("specification: paging requires skip >= 0 and take > 0"))
		return s
	}
	s.skip = skip
	s.take = take
	s.pagingEnabled = true
	return s
}

// WithTracking opts into a tracked read session.
func (s *Specification[T]) WithTracking() *Specification[T] {
	s.tracking = true
	return s
}

// WithDeleted bypasses the soft-delete filter, e.g. for audit viewing.
func (s *Specification[T]) WithDeleted() *Specification[T] {
	s.includeDeleted = true
	return s
}

func (s *Specification[T]) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// ============================================================================
// Accessors used by the store evaluator
// ============================================================================

// Err reports the first construction error, if any. Executing a broken
// specification fails instead of silently running the wrong query.
func (s *Specification[T]) Err() error { return s.err }

func (s *Specification[T]) Criteria() Criteria { return s.criteria }

func (s *Specification[T]) Includes() []string { return s.includes }

// Order returns the ordering column, direction and whether ordering was set.
func (s *Specification[T]) Order() (column string, desc bool, ok bool) {
	return s.orderColumn, s.orderDesc, s.hasOrder
}

func (s *Specification[T]) Group() (column string, ok bool) {
	return s.groupColumn, s.groupColumn != ""
}

// Paging returns skip/take and whether paging is enabled.
func (s *Specification[T]) Paging() (skip, take int, enabled bool) {
	return s.skip, s.take, s.pagingEnabled
}

func (s *Specification[T]) Tracking() bool { return s.tracking }

func (s *Specification[T]) IncludesDeleted() bool { return s.includeDeleted }

// Matches evaluates the specification's criteria in memory.
// A specification without criteria matches everything.
func (s *Specification[T]) Matches(entity T) bool {
	if s.criteria == nil {
		return true
	}
	return s.criteria.Matches(entity)
}

// PagedResult is one page of a query plus the total match count.
// TotalCount reflects the full filtered set, independent of the page slice.
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Skip       int   `json:"skip"`
	Take       int   `json:"take"`
}
