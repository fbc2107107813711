package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/swiftlogistics/platform/pkg/jwtx"
)

const (
	testIssuer   = "swiftlogistics"
	testAudience = "swiftlogistics-users"
)

var testSecret = []byte("test-secret-that-is-long-enough-for-hs256")

// clock is a settable time source shared by signer and verifier.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newHS256(t *testing.T, clk *clock) *jwtx.HS256 {
	t.Helper()
	h, err := jwtx.NewHS256(testSecret, jwtx.VerifyOptions{
		Issuer:   testIssuer,
		Audience: testAudience,
		Now:      clk.Now,
	})
	require.NoError(t, err)
	return h
}

func signAt(t *testing.T, h *jwtx.HS256, now time.Time) (string, jwtx.Claims) {
	t.Helper()
	c := jwtx.NewClaims("user-1", "c@x.com", "client", jwtx.DefaultTokenTTL, testIssuer, testAudience, now)
	c.ClientID = "CL123"
	tok, err := h.Sign(c)
	require.NoError(t, err)
	return tok, c
}

func TestHS256RoundTrip(t *testing.T) {
	clk := &clock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	h := newHS256(t, clk)

	tok, issued := signAt(t, h, clk.now)

	got, err := h.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, issued.Subject, got.Subject)
	require.Equal(t, issued.Role, got.Role)
	require.Equal(t, "CL123", got.ClientID)
	require.Equal(t, "c@x.com", got.Email)
}

func TestHS256TimeWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	clk := &clock{now: start}
	h := newHS256(t, clk)
	tok, _ := signAt(t, h, start)

	t.Run("valid inside window", func(t *testing.T) {
		clk.now = start.Add(23 * time.Hour)
		_, err := h.Verify(tok)
		require.NoError(t, err)
	})

	t.Run("expired after exp", func(t *testing.T) {
		clk.now = start.Add(24*time.Hour + time.Second)
		_, err := h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("not yet valid before iat", func(t *testing.T) {
		clk.now = start.Add(-time.Minute)
		_, err := h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})
}

func TestHS256RejectsMismatchedIssuerAndAudience(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	clk := &clock{now: now}
	h := newHS256(t, clk)

	other, err := jwtx.NewHS256(testSecret, jwtx.VerifyOptions{})
	require.NoError(t, err)

	t.Run("issuer", func(t *testing.T) {
		c := jwtx.NewClaims("u", "e", "client", time.Hour, "elsewhere", testAudience, now)
		tok, err := other.Sign(c)
		require.NoError(t, err)

		_, err = h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("audience", func(t *testing.T) {
		c := jwtx.NewClaims("u", "e", "client", time.Hour, testIssuer, "other-aud", now)
		tok, err := other.Sign(c)
		require.NoError(t, err)

		_, err = h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})
}

func TestHS256RejectsForgeries(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	clk := &clock{now: now}
	h := newHS256(t, clk)
	tok, _ := signAt(t, h, now)

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(tok, ".")
		parts[2] = strings.Repeat("A", len(parts[2]))
		_, err := h.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("different secret", func(t *testing.T) {
		other, err := jwtx.NewHS256([]byte("another-secret-another-secret-xx"), jwtx.VerifyOptions{})
		require.NoError(t, err)
		forged, _ := signAt(t, other, now)

		_, err = h.Verify(forged)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("expired forgery is malformed not expired", func(t *testing.T) {
		other, err := jwtx.NewHS256([]byte("another-secret-another-secret-xx"), jwtx.VerifyOptions{})
		require.NoError(t, err)
		forged, _ := signAt(t, other, now.Add(-48*time.Hour))

		_, err = h.Verify(forged)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
		require.NotErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("none algorithm", func(t *testing.T) {
		c := jwtx.NewClaims("u", "e", "admin", time.Hour, testIssuer, testAudience, now)
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = h.Verify(unsigned)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := h.Verify("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestHS256VerifyIgnoringExpiry(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	clk := &clock{now: start}
	h := newHS256(t, clk)
	tok, _ := signAt(t, h, start)

	clk.now = start.Add(72 * time.Hour)

	_, err := h.Verify(tok)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	claims, err := h.VerifyIgnoringExpiry(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)

	_, err = h.VerifyIgnoringExpiry(tok + "x")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestHS256AcceptsLegacyClaimShape(t *testing.T) {
	now := time.Now()
	clk := &clock{now: now}
	h := newHS256(t, clk)

	// Shape produced by the portal's existing token issuer.
	legacy := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       "64f0c0ffee",
		"email":    "d@x.com",
		"role":     "driver",
		"driverId": "DR1700000000",
		"iat":      now.Unix(),
		"exp":      now.Add(time.Hour).Unix(),
		"iss":      testIssuer,
		"aud":      testAudience,
	})
	tok, err := legacy.SignedString(testSecret)
	require.NoError(t, err)

	claims, err := h.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "64f0c0ffee", claims.SubjectID())
	require.Equal(t, "driver", claims.Role)
	require.Equal(t, "DR1700000000", claims.DriverID)
}

func TestNewHS256RequiresSecret(t *testing.T) {
	_, err := jwtx.NewHS256(nil, jwtx.VerifyOptions{})
	require.Error(t, err)
}
