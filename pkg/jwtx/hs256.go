package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HS256 signs and verifies tokens with a shared secret.
type HS256 struct {
	secret []byte
	opts   VerifyOptions
}

// NewHS256 returns a signer/verifier for secret.
func NewHS256(secret []byte, opts VerifyOptions) (*HS256, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: empty HS256 secret")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &HS256{secret: secret, opts: opts}, nil
}

// Sign takes your claims and turns them into a signed JWT string.
func (h *HS256) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Verify checks signature and structure first, then time and
// issuer/audience. The order matters: a forged token must read as
// malformed, never as expired.
func (h *HS256) Verify(tokenStr string) (Claims, error) {
	claims, err := h.parse(tokenStr)
	if err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(h.opts.Now),
		jwt.WithLeeway(h.opts.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if h.opts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.opts.Issuer))
	}
	if h.opts.Audience != "" {
		opts = append(opts, jwt.WithAudience(h.opts.Audience))
	}

	if err := jwt.NewValidator(opts...).Validate(claims); err != nil {
		return Claims{}, mapValidationError(err)
	}

	return *claims, nil
}

// VerifyIgnoringExpiry recovers claims from a correctly signed token whose
// lifetime may have run out. Every failure is ErrMalformed.
func (h *HS256) VerifyIgnoringExpiry(tokenStr string) (Claims, error) {
	claims, err := h.parse(tokenStr)
	if err != nil {
		return Claims{}, err
	}

	if err := claims.ValidateIssuer(h.opts.Issuer); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := claims.ValidateAudience(h.opts.Audience); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return *claims, nil
}

func (h *HS256) parse(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !token.Valid || claims.SubjectID() == "" {
		return nil, ErrMalformed
	}

	return &claims, nil
}

func mapValidationError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", ErrMalformed, ErrIssuer)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %w", ErrMalformed, ErrAudience)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
