package shared

import (
	"fmt"
	"reflect"
	"time"
)

// Result is the uniform return shape of every data-access operation.
// Expected failures travel as Result failures instead of errors so callers
// get a stable status code and message without unwrapping store internals.
//
// Invariants:
//   - a failure never carries a non-zero Value
//   - a success always carries a usable Value; constructing a success from a
//     nil pointer/slice/map/interface is a programming error and panics
type Result[T any] struct {
	IsSuccess     bool      `json:"is_success"`
	Value         T         `json:"value,omitempty"`
	Message       string    `json:"message,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
	StatusCode    int       `json:"status_code"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Ok builds a success result. Panics on a nil value: callers that have
// nothing to return must use NotFound or another failure constructor.
func Ok[T any](value T) Result[T] {
	mustBeUsable(value)
	return Result[T]{
		IsSuccess:  true,
		Value:      value,
		StatusCode: 200,
		Timestamp:  time.Now().UTC(),
	}
}

// OkMessage is Ok with an informational message attached.
func OkMessage[T any](value T, message string) Result[T] {
	r := Ok(value)
	r.Message = message
	return r
}

// Fail builds a failure with an explicit status code.
func Fail[T any](statusCode int, message string, errs ...string) Result[T] {
	return Result[T]{
		IsSuccess:  false,
		Message:    message,
		Errors:     errs,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

// FailErr builds a failure from a classified error; the status code comes
// from the error's sentinel via StatusOf.
func FailErr[T any](err error) Result[T] {
	if err == nil {
		return Fail[T](500, "unknown failure")
	}
	return Fail[T](StatusOf(err), err.Error())
}

// NotFound builds the standard 404 failure for an entity.
func NotFound[T any](entity string) Result[T] {
	return Fail[T](404, entity+" not found")
}

// ValidationFailed builds a 400 failure carrying field-level messages.
func ValidationFailed[T any](message string, fieldErrors ...string) Result[T] {
	return Fail[T](400, message, fieldErrors...)
}

// WithCorrelationID tags the result with the request correlation id so
// callers can reference the detailed server-side log entry.
func (r Result[T]) WithCorrelationID(id string) Result[T] {
	r.CorrelationID = id
	return r
}

// IsFailure reports whether the result is a failure.
func (r Result[T]) IsFailure() bool {
	return !r.IsSuccess
}

// mustBeUsable panics when value is a nil pointer, map, slice, interface,
// func or channel. Plain zero values (0, "", struct{}) are legitimate.
func mustBeUsable(value any) {
	if value == nil {
		panic("shared.Ok: success result requires a non-nil value")
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("shared.Ok: success result requires a non-nil %s", rv.Kind()))
		}
	}
}
