// Package persistence carries per-operation state through context: the
// active transaction, the distributed coordinator, the acting identity and
// the correlation id. The explicit context object replaces any ambient or
// thread-local transaction scope.
package persistence

import (
	"context"

	"gorm.io/gorm"
)

// SystemActor is stamped on audit fields when no authenticated actor is
// present in the context.
const SystemActor = "system"

type txKey struct{}
type actorKey struct{}
type correlationIDKey struct{}

// TxFromContext retrieves the GORM transaction from context.
// Returns nil if no transaction is present.
func TxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// ContextWithTx returns a new context with the GORM transaction attached.
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// ActorFromContext resolves the acting identity, defaulting to SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

// ContextWithActor attaches the authenticated actor's identity.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// CorrelationIDFromContext returns the correlation id, or "" when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ContextWithCorrelationID attaches a correlation id linking Result messages
// to detailed server-side log entries.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}
