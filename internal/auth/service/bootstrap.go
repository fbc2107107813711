package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/pkg/cryptox"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

var (
	ErrBootstrapAlready             = errors.New("system already bootstrapped")
	ErrBootstrapIncomplete          = errors.New("admin email and password are required")
	ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin user")
)

// BootstrapService creates the first admin account. Self-service signup
// only produces clients and drivers, so this is the only way in for admins.
type BootstrapService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	n, err := s.Store.Accounts().CountAccountsByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Bootstrap creates the admin described by req unless one already exists.
func (s *BootstrapService) Bootstrap(ctx context.Context, req domain.BootstrapData) (string, error) {
	l := slogx.FromContext(ctx)

	if req.AdminEmail == "" || req.AdminPassword == "" {
		return "", ErrBootstrapIncomplete
	}

	bootstrapped, err := s.IsBootstrapped(ctx)
	if err != nil {
		return "", err
	}
	if bootstrapped {
		return "", ErrBootstrapAlready
	}

	passHash, err := cryptox.HashPassword(req.AdminPassword)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return "", ErrBootstrapFailedToCreateAdmin
	}

	name := req.AdminName
	if name == "" {
		name = "Administrator"
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	adminID := idx.New().String()
	err = s.Store.Accounts().CreateAccount(ctx, domain.Account{
		ID:           adminID,
		Name:         name,
		Email:        NormalizeEmail(req.AdminEmail),
		PasswordHash: passHash,
		Role:         domain.RoleAdmin,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		l.Error("failed to create admin user",
			slog.String("admin_user_id", adminID),
			slog.Any("error", err),
		)
		return "", ErrBootstrapFailedToCreateAdmin
	}

	l.Info("successfully bootstrapped system", slog.String("admin_user_id", adminID))
	return adminID, nil
}
