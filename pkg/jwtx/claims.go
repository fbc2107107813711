package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of an access token, and of the session
// record that tracks it.
const DefaultTokenTTL = 24 * time.Hour

// Claims are the access-token claims shared by every service. The custom
// field names are fixed by the tokens already issued to portal clients.
type Claims struct {
	jwt.RegisteredClaims

	// UserID duplicates sub for older readers that look at "id".
	UserID string `json:"id"`

	Email string `json:"email"`

	// Role is one of "client", "driver" or "admin".
	Role string `json:"role"`

	// At most one of these is set, matching Role.
	ClientID string `json:"clientId,omitempty"`
	DriverID string `json:"driverId,omitempty"`
}

// NewClaims builds claims valid from now for ttl.
func NewClaims(subject, email, role string, ttl time.Duration, issuer, audience string, now time.Time) Claims {
	rc := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		rc.Audience = jwt.ClaimStrings{audience}
	}

	return Claims{
		RegisteredClaims: rc,
		UserID:           subject,
		Email:            email,
		Role:             role,
	}
}

// SubjectID prefers sub and falls back to the legacy id claim.
func (c *Claims) SubjectID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// RemainingTTL is how long the token stays valid after now. It is zero or
// negative once the token has expired.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks the expected audience is present.
func (c *Claims) ValidateAudience(expected string) error {
	if expected == "" {
		return nil
	}

	if slices.Contains(c.Audience, expected) {
		return nil
	}

	return ErrAudience
}
