package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/session"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/jwtx"
)

const (
	DefaultIssuer   = "swiftlogistics"
	DefaultAudience = "swiftlogistics-users"
)

// ErrRevoked is returned for a well-formed, unexpired token that has been
// blacklisted.
var ErrRevoked = errors.New("token revoked")

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration

	// Leeway tolerates clock skew between services on exp and iat.
	Leeway time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// TokenService issues and verifies access tokens and keeps the session
// and revocation records that go with them.
type TokenService struct {
	Tokens   *jwtx.HS256
	Sessions session.Store
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// NewTokenService builds a TokenService signing with cfg.Secret.
func NewTokenService(cfg TokenConfig, sessions session.Store) (*TokenService, error) {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.TTL <= 0 {
		cfg.TTL = jwtx.DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	tokens, err := jwtx.NewHS256(cfg.Secret, jwtx.VerifyOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
		Now:      cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	return &TokenService{
		Tokens:   tokens,
		Sessions: sessions,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.TTL,
		Now:      cfg.Now,
	}, nil
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue signs a token for the subject. roleID lands in clientId or
// driverId depending on role.
func (s *TokenService) Issue(subjectID, email string, role domain.Role, roleID string) (domain.IssuedToken, error) {
	now := s.now().Truncate(time.Second)

	claims := jwtx.NewClaims(subjectID, email, string(role), s.TTL, s.Issuer, s.Audience, now)
	// jti keeps two tokens issued in the same second distinct, so revoking
	// one never revokes the other.
	claims.ID = idx.New().String()
	switch role {
	case domain.RoleClient:
		claims.ClientID = roleID
	case domain.RoleDriver:
		claims.DriverID = roleID
	}

	token, err := s.Tokens.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.IssuedToken{
		Token:     token,
		SubjectID: subjectID,
		Role:      role,
		RoleID:    roleID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.TTL),
	}, nil
}

// IssueFor signs a token for an account.
func (s *TokenService) IssueFor(a domain.Account) (domain.IssuedToken, error) {
	return s.Issue(a.ID, a.Email, a.Role, a.RoleID)
}

// Verify checks signature, structure, lifetime, issuer and audience. It
// does not consult the revocation store; see Authenticate.
func (s *TokenService) Verify(token string) (jwtx.Claims, error) {
	return s.Tokens.Verify(token)
}

// VerifyIgnoringExpiry recovers the claims of a correctly signed token
// regardless of its lifetime.
func (s *TokenService) VerifyIgnoringExpiry(token string) (jwtx.Claims, error) {
	return s.Tokens.VerifyIgnoringExpiry(token)
}

// Authenticate verifies token and then checks it has not been revoked.
// Verification always runs first so a forged token never reaches the
// store.
func (s *TokenService) Authenticate(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return jwtx.Claims{}, err
	}

	revoked, err := s.Sessions.IsRevoked(ctx, token)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return jwtx.Claims{}, ErrRevoked
	}
	return claims, nil
}

// IsRevoked reports whether token has been blacklisted.
func (s *TokenService) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.Sessions.IsRevoked(ctx, token)
}

// Revoke blacklists token for the rest of its lifetime. The token must be
// correctly signed; expired tokens are left alone since they can no longer
// be used.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := s.VerifyIgnoringExpiry(token)
	if err != nil {
		return err
	}
	return s.revoke(ctx, token, claims)
}

// revoke is Revoke for a token whose claims were already verified.
func (s *TokenService) revoke(ctx context.Context, token string, claims jwtx.Claims) error {
	ttl := claims.RemainingTTL(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.Sessions.Revoke(ctx, token, ttl)
}

// StartSession records t as its subject's only live session.
func (s *TokenService) StartSession(ctx context.Context, t domain.IssuedToken) error {
	return s.Sessions.PutSession(ctx, t.SubjectID, t.Token, t.TTL())
}

// EndSession drops the subject's live session, if any.
func (s *TokenService) EndSession(ctx context.Context, subjectID string) error {
	return s.Sessions.DeleteSession(ctx, subjectID)
}
