package middleware

import (
	"context"
	"time"
)

// operatorContextKey is the context key for authenticated operator information.
type operatorContextKey struct{}

// OperatorContext carries the authenticated operator key's identity, set by
// Authenticate after a successful key lookup.
type OperatorContext struct {
	KeyID    int64
	Label    string
	AuthTime time.Time
}

// GetOperatorContext extracts operator context from the request context.
func GetOperatorContext(ctx context.Context) (OperatorContext, bool) {
	opCtx, ok := ctx.Value(operatorContextKey{}).(OperatorContext)

	return opCtx, ok
}

// SetOperatorContext adds operator context to the request context.
func SetOperatorContext(ctx context.Context, opCtx OperatorContext) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, opCtx)
}
