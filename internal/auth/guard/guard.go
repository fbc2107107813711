// Package guard is the HTTP authorization layer: bearer authentication,
// role checks and resource ownership checks.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/pkg/httpx"
	"github.com/swiftlogistics/platform/pkg/jwtx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

// Stable machine-readable error codes.
const (
	CodeNoToken                 = "NO_TOKEN"
	CodeInvalidTokenFormat      = "INVALID_TOKEN_FORMAT"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidTokenTime        = "INVALID_TOKEN_TIME"
	CodeTokenRevoked            = "TOKEN_REVOKED"
	CodeNotAuthenticated        = "NOT_AUTHENTICATED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeMissingResourceID       = "MISSING_RESOURCE_ID"
	CodeResourceAccessDenied    = "RESOURCE_ACCESS_DENIED"
	CodeAuthError               = "AUTH_ERROR"
)

// Authenticator verifies a bearer token and checks it is not revoked.
// service.TokenService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (jwtx.Claims, error)
}

// Guard builds the authorization middlewares.
type Guard struct {
	Tokens    Authenticator
	Ownership OwnershipPolicy
}

// New returns a Guard. A nil policy means PermissiveOwnership.
func New(tokens Authenticator, policy OwnershipPolicy) *Guard {
	if policy == nil {
		policy = PermissiveOwnership{}
	}
	return &Guard{Tokens: tokens, Ownership: policy}
}

// rejection maps an authentication failure to its status, code and message.
func rejection(err error) (int, string, string) {
	switch {
	case errors.Is(err, httpx.ErrNoToken):
		return http.StatusUnauthorized, CodeNoToken, "Access denied. No token provided."
	case errors.Is(err, httpx.ErrInvalidTokenFormat):
		return http.StatusUnauthorized, CodeInvalidTokenFormat, "Access denied. Invalid token format."
	case errors.Is(err, service.ErrRevoked):
		return http.StatusUnauthorized, CodeTokenRevoked, "Access denied. Token has been revoked."
	case errors.Is(err, jwtx.ErrExpired):
		return http.StatusUnauthorized, CodeTokenExpired, "Access denied. Token has expired."
	case errors.Is(err, jwtx.ErrNotYetValid):
		return http.StatusUnauthorized, CodeInvalidTokenTime, "Access denied. Token issued in the future."
	case errors.Is(err, jwtx.ErrMalformed):
		return http.StatusUnauthorized, CodeInvalidToken, "Access denied. Invalid token."
	default:
		return http.StatusInternalServerError, CodeAuthError, "Internal server error during authentication."
	}
}

func (g *Guard) authenticate(r *http.Request) (jwtx.Claims, string, error) {
	token, err := httpx.BearerToken(r)
	if err != nil {
		return jwtx.Claims{}, "", err
	}
	claims, err := g.Tokens.Authenticate(r.Context(), token)
	if err != nil {
		return jwtx.Claims{}, "", err
	}
	return claims, token, nil
}

func withClaims(r *http.Request, claims jwtx.Claims, token string) *http.Request {
	ctx := httpx.ContextWithAuth(r.Context(), claims, token)
	ctx = slogx.With(ctx, slog.String("user_id", claims.SubjectID()), slog.String("role", claims.Role))
	return r.WithContext(ctx)
}

// Authenticate rejects requests without a valid, unrevoked bearer token and
// attaches the verified claims to the request context otherwise.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := g.authenticate(r)
		if err != nil {
			status, code, msg := rejection(err)
			l := slogx.FromContext(r.Context())
			if status == http.StatusInternalServerError {
				l.Error("authentication failed", slog.Any("error", err))
			} else {
				l.Info("authentication rejected", slog.String("code", code))
			}
			httpx.WriteError(w, status, code, msg)
			return
		}
		next.ServeHTTP(w, withClaims(r, claims, token))
	})
}

// Optional attaches claims when a valid token is present and otherwise lets
// the request through anonymously. It never fails the request.
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := g.authenticate(r)
		if err != nil {
			if !errors.Is(err, httpx.ErrNoToken) {
				slogx.FromContext(r.Context()).Debug("optional authentication ignored", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, withClaims(r, claims, token))
	})
}

func notAuthenticated(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusUnauthorized, CodeNotAuthenticated, "Access denied. User not authenticated.")
}

// RequireRole admits callers whose role is one of roles. It must run after
// Authenticate.
func RequireRole(roles ...domain.Role) httpx.Middleware {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := httpx.ClaimsFromContext(r.Context())
			if !ok {
				notAuthenticated(w)
				return
			}

			if !slices.Contains(allowed, claims.Role) {
				httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorBody{
					Error: "Access denied. Insufficient permissions.",
					Code:  CodeInsufficientPermissions,
					Details: map[string]string{
						"required": strings.Join(allowed, ","),
						"current":  claims.Role,
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership admits callers allowed to touch the resource named by
// idField, taken from the path or, failing that, the JSON body. Admins
// pass once the id is known. It must run after Authenticate.
func (g *Guard) RequireOwnership(resource ResourceType, idField string) httpx.Middleware {
	if idField == "" {
		idField = "id"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := httpx.ClaimsFromContext(r.Context())
			if !ok {
				notAuthenticated(w)
				return
			}

			id := resourceID(r, idField)
			if id == "" {
				httpx.WriteError(w, http.StatusBadRequest, CodeMissingResourceID, "Resource ID not provided.")
				return
			}

			if claims.Role == string(domain.RoleAdmin) {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := g.Ownership.CanAccess(r.Context(), claims, resource, id)
			if err != nil {
				slogx.FromContext(r.Context()).Error("ownership check failed",
					slog.String("resource_type", string(resource)),
					slog.String("resource_id", id),
					slog.Any("error", err),
				)
				httpx.WriteError(w, http.StatusInternalServerError, CodeAuthError, "Internal server error during authorization.")
				return
			}
			if !allowed {
				httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorBody{
					Error: "Access denied. You can only access your own resources.",
					Code:  CodeResourceAccessDenied,
					Details: map[string]string{
						"resourceType": string(resource),
						"resourceId":   id,
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
