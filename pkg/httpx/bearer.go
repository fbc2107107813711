package httpx

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNoToken            = errors.New("httpx: no token provided")
	ErrInvalidTokenFormat = errors.New("httpx: invalid token format")
)

// BearerToken pulls the token out of the Authorization header. The header
// may be "Bearer <token>" or the bare token itself; any other scheme is
// rejected.
func BearerToken(r *http.Request) (string, error) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", ErrNoToken
	}

	scheme, rest, found := strings.Cut(authz, " ")
	if !found {
		if strings.EqualFold(authz, "Bearer") {
			return "", ErrInvalidTokenFormat
		}
		return authz, nil
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidTokenFormat
	}

	token := strings.TrimSpace(rest)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidTokenFormat
	}
	return token, nil
}
