/*
Package shared - domain-level error definitions.

Design principles:
 1. Sentinel errors support type-safe errors.Is() checks.
 2. DomainError captures its stack at creation but formats it lazily.
 3. Domain errors carry no transport concepts; StatusOf maps them to the
    HTTP-style codes used by Result at the data-access boundary.
 4. Standard library errors only, no third-party error packages.
*/
package shared

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ============================================================================
// Sentinel Errors
// Used with errors.Is() to classify failures; they carry no detail themselves.
// ============================================================================

var (
	// ErrNotFound requested entity absent or soft-deleted
	ErrNotFound = errors.New("not found")

	// ErrValidation caller-supplied data fails domain rules
	ErrValidation = errors.New("validation error")

	// ErrDuplicate uniqueness violation
	ErrDuplicate = errors.New("duplicate entity")

	// ErrConcurrencyConflict optimistic concurrency token mismatch
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrTransactionCompleted commit or rollback on an already completed transaction
	ErrTransactionCompleted = errors.New("transaction already completed")

	// ErrTransactionTimeout transaction exceeded its allotted time
	ErrTransactionTimeout = errors.New("transaction timeout")

	// ErrUnauthorized caller is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden caller is authenticated but lacks rights
	ErrForbidden = errors.New("forbidden")

	// ErrUnexpectedStore catch-all for anything else surfaced by the store
	ErrUnexpectedStore = errors.New("unexpected store error")
)

// StatusOf maps a classified error to its HTTP-style status code.
// Unknown errors map to 500 like ErrUnexpectedStore.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConcurrencyConflict):
		return 409
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrTransactionTimeout):
		return 408
	default:
		return 500
	}
}

// ============================================================================
// Domain Error
// Carries business context and the creation-site stack, supports
// errors.Is() and errors.As() via Unwrap.
// ============================================================================

type DomainError struct {
	// Err underlying sentinel, used by errors.Is()
	Err error

	// Entity name of the entity involved (e.g. "product", "category")
	Entity string

	// Message human-readable description
	Message string

	// Field optional field name for validation errors
	Field string

	// stack call frames captured at creation, formatted on demand
	stack []uintptr
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Stack formats the captured stack on demand (only when logging).
func (e *DomainError) Stack() []string {
	return FormatStack(e.stack)
}

// ============================================================================
// Stack capture helpers
// ============================================================================

// CaptureStack captures the current call stack.
// skip: frames to skip (normally 3: Callers, CaptureStack, NewXxxError).
func CaptureStack(skip int) []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	return pcs[:n]
}

// FormatStack renders stack frames as strings, filtering runtime internals
// and keeping at most 10 frames.
func FormatStack(stack []uintptr) []string {
	if len(stack) == 0 {
		return nil
	}

	frames := runtime.CallersFrames(stack)
	var result []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			result = append(result, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more || len(result) > 10 {
			break
		}
	}
	return result
}

// ============================================================================
// Constructors
// ============================================================================

func NewNotFoundError(entity string) error {
	return &DomainError{
		Err:     ErrNotFound,
		Entity:  entity,
		Message: entity + " not found",
		stack:   CaptureStack(3),
	}
}

func NewDuplicateError(entity, message string) error {
	return &DomainError{
		Err:     ErrDuplicate,
		Entity:  entity,
		Message: message,
		stack:   CaptureStack(3),
	}
}

func NewConcurrencyConflictError(entity string, id int64) error {
	return &DomainError{
		Err:     ErrConcurrencyConflict,
		Entity:  entity,
		Message: fmt.Sprintf("%s %d was modified concurrently, reload and retry", entity, id),
		stack:   CaptureStack(3),
	}
}

func NewValidationError(entity, field, reason string) error {
	return &DomainError{
		Err:     ErrValidation,
		Entity:  entity,
		Field:   field,
		Message: reason,
		stack:   CaptureStack(3),
	}
}

func NewTransactionTimeoutError(entity string) error {
	return &DomainError{
		Err:     ErrTransactionTimeout,
		Entity:  entity,
		Message: "transaction exceeded its allotted time",
		stack:   CaptureStack(3),
	}
}

func NewUnexpectedStoreError(entity string) error {
	return &DomainError{
		Err:     ErrUnexpectedStore,
		Entity:  entity,
		Message: "an unexpected storage error occurred",
		stack:   CaptureStack(3),
	}
}

// ============================================================================
// Stacker interface - lets callers extract stacks uniformly when logging
// ============================================================================

type Stacker interface {
	Stack() []string
}
