package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/freshcart-vn/freshcart-backend/internal/orders"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// RequesterFromContext maps the authenticated actor onto the order ownership
// model. Unauthenticated requests yield a guest requester.
func RequesterFromContext(ctx context.Context) orders.Requester {
	requester := orders.Requester{
		Admin: RoleFromContext(ctx) == enums.UserRoleAdmin.String(),
	}
	if id, err := uuid.Parse(UserIDFromContext(ctx)); err == nil {
		requester.CustomerID = &id
	}
	return requester
}
