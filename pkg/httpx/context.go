package httpx

import (
	"context"

	"github.com/swiftlogistics/platform/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
	CtxKeyToken  ctxKey = "token" // raw bearer string, needed by logout
)

// ContextWithAuth stores verified claims and the raw token on ctx.
func ContextWithAuth(ctx context.Context, c jwtx.Claims, rawToken string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.SubjectID())
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	ctx = context.WithValue(ctx, CtxKeyToken, rawToken)
	return ctx
}

// ClaimsFromContext returns the claims attached by the authentication
// middleware, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// TokenFromContext returns the raw bearer token the claims were parsed from.
func TokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(CtxKeyToken).(string)
	return s
}
