package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/service"
)

func TestBootstrap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := &service.BootstrapService{Store: h.store, Now: h.clock.Now}

	_, err := svc.Bootstrap(ctx, domain.BootstrapData{AdminEmail: "admin@x.com"})
	require.ErrorIs(t, err, service.ErrBootstrapIncomplete)

	done, err := svc.IsBootstrapped(ctx)
	require.NoError(t, err)
	require.False(t, done)

	id, err := svc.Bootstrap(ctx, domain.BootstrapData{AdminEmail: "Admin@X.com", AdminPassword: "admin-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = svc.Bootstrap(ctx, domain.BootstrapData{AdminEmail: "other@x.com", AdminPassword: "admin-pass"})
	require.ErrorIs(t, err, service.ErrBootstrapAlready)

	admin, tok, err := h.accounts.Login(ctx, "admin@x.com", "admin-pass", "")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, admin.Role)
	require.Equal(t, "Administrator", admin.Name)

	claims, err := h.tokens.Verify(tok.Token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)
	require.Empty(t, claims.ClientID)
	require.Empty(t, claims.DriverID)
}
