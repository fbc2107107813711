package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/swiftlogistics/platform/pkg/jwtx"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "swiftlogistics",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("swiftlogistics"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("someone-else"), jwtx.ErrIssuer)
	})
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: []string{"swiftlogistics-users", "portal"},
		},
	}

	t.Run("contains match", func(t *testing.T) {
		require.NoError(t, c.ValidateAudience("portal"))
	})

	t.Run("no match", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateAudience("admin"), jwtx.ErrAudience)
	})

	t.Run("empty expected", func(t *testing.T) {
		require.NoError(t, c.ValidateAudience(""))
	})
}

func TestNewClaims(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c := jwtx.NewClaims("u1", "c@x.com", "client", jwtx.DefaultTokenTTL, "iss", "aud", now)

	require.Equal(t, "u1", c.Subject)
	require.Equal(t, "u1", c.UserID)
	require.Equal(t, "u1", c.SubjectID())
	require.True(t, c.ExpiresAt.After(c.IssuedAt.Time))
	require.Equal(t, 24*time.Hour, c.RemainingTTL(now))
	require.Equal(t, time.Duration(0), c.RemainingTTL(now.Add(24*time.Hour)))
	require.Nil(t, c.NotBefore)
}

func TestSubjectIDFallsBackToLegacyID(t *testing.T) {
	c := jwtx.Claims{UserID: "legacy"}
	require.Equal(t, "legacy", c.SubjectID())
}
