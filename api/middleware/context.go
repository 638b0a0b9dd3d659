package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxAuth   contextKey = "auth_context"
)

func UserIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// AuthFromContext returns the per-request authorization state seeded by
// CondoContext, or nil when resolution has not run.
func AuthFromContext(ctx context.Context) *tenancy.AuthContext {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxAuth).(*tenancy.AuthContext); ok {
		return v
	}
	return nil
}

// WithUserID injects the authenticated user identifier into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithAuth injects the resolved authorization state for downstream handlers.
func WithAuth(ctx context.Context, authCtx *tenancy.AuthContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAuth, authCtx)
}
