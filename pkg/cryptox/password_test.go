package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"unicode password", "пароль密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$2a$12$"), "hash should be bcrypt at cost 12")

			require.NoError(t, VerifyPassword(tt.password, hash))
			require.ErrorIs(t, VerifyPassword(tt.password+"x", hash), ErrPasswordMismatch)
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	hash1, err := HashPassword("samepassword")
	require.NoError(t, err)
	hash2, err := HashPassword("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
}

func TestVerifyPassword_AcceptsLowerCostHashes(t *testing.T) {
	// Hashes created elsewhere at a different cost still verify.
	legacy, err := bcrypt.GenerateFromPassword([]byte("driver-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("driver-pass", string(legacy)))
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	for _, bad := range []string{"", "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "plain"} {
		err := VerifyPassword("test-password", bad)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrPasswordMismatch)
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]bool)
	for range 20 {
		password, err := GeneratePassword()
		require.NoError(t, err)
		require.Len(t, password, 16)
		require.False(t, seen[password], "duplicate password generated")
		seen[password] = true
	}
}
