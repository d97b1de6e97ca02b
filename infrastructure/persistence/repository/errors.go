package repository

import (
	"context"
	"errors"
	"strings"

	"stockroom/domain/shared"
	"stockroom/infrastructure/persistence"
	"stockroom/pkg/logger"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// classifyStoreError converts a raw store error into a classified domain
// error. This is the boundary: nothing below the repository layer lets a raw
// store error escape to calling services.
func classifyStoreError(err error, entity string) error {
	if err == nil {
		return nil
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError(entity)
	case isDuplicateKeyError(err):
		return shared.NewDuplicateError(entity, entity+" violates a uniqueness constraint")
	case errors.Is(err, context.DeadlineExceeded):
		return shared.NewTransactionTimeoutError(entity)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return shared.NewUnexpectedStoreError(entity)
	}
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Duplicate entry") ||
		strings.Contains(errStr, "UNIQUE constraint failed")
}

// correlationID returns the context's correlation id or mints one, so every
// failure log line and its Result reference the same identifier.
func correlationID(ctx context.Context) string {
	if id := persistence.CorrelationIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// DetailedErrors additionally copies the raw store error text into failure
// results. Development only; production keeps result messages generic and
// relies on the correlation id to find the detailed log entry.
var DetailedErrors bool

// failure classifies err, logs the full detail server-side under a
// correlation id, and returns a Result whose message carries only the
// generic classified text plus that id. Stack traces and store internals
// never reach the Result unless DetailedErrors is on.
func failure[V any](ctx context.Context, entity string, err error) shared.Result[V] {
	classified := classifyStoreError(err, entity)
	cid := correlationID(ctx)

	fields := []zap.Field{
		zap.String("entity", entity),
		zap.Error(err),
	}
	var stacker shared.Stacker
	if errors.As(classified, &stacker) {
		fields = append(fields, zap.Strings("stack", stacker.Stack()))
	}
	logger.WithCorrelationID(cid).Error("store operation failed", fields...)

	res := shared.FailErr[V](classified).WithCorrelationID(cid)
	if DetailedErrors {
		res.Errors = append(res.Errors, err.Error())
	}
	return res
}
