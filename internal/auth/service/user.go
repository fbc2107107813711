package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/pkg/cryptox"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role specified")
	ErrInvalidToken       = errors.New("invalid token")
)

// RegisterInput is a self-service signup. Only clients and drivers may
// register; admins come from bootstrap.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Phone    string
	Address  string

	// RoleID is generated when empty.
	RoleID string

	// IP is the caller address, recorded on the event only.
	IP string
}

// AccountService implements registration, login, logout, refresh and
// profile lookup.
type AccountService struct {
	Store  store.Store
	Tokens *TokenService
	Events *events.Publisher
	Now    func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NormalizeEmail lower-cases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and issues its first token. No session is
// recorded until the user logs in.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.Account, domain.IssuedToken, error) {
	l := slogx.FromContext(ctx)

	if in.Role != domain.RoleClient && in.Role != domain.RoleDriver {
		return domain.Account{}, domain.IssuedToken{}, ErrInvalidRole
	}

	email := NormalizeEmail(in.Email)
	if _, err := s.Store.Accounts().GetAccountByEmail(ctx, email); err == nil {
		return domain.Account{}, domain.IssuedToken{}, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, domain.IssuedToken{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Account{}, domain.IssuedToken{}, err
	}

	roleID := strings.TrimSpace(in.RoleID)
	if roleID == "" {
		roleID = in.Role.NewRoleID()
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:           idx.New().String(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		RoleID:       roleID,
		Phone:        in.Phone,
		Address:      in.Address,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		// Lost a race with a concurrent signup for the same address.
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, domain.IssuedToken{}, ErrUserExists
		}
		return domain.Account{}, domain.IssuedToken{}, err
	}

	token, err := s.Tokens.IssueFor(account)
	if err != nil {
		return domain.Account{}, domain.IssuedToken{}, err
	}

	l.Info("account registered",
		slog.String("user_id", account.ID),
		slog.String("role", string(account.Role)),
	)
	s.Events.UserRegistered(ctx, events.AuthEvent{
		UserID:    account.ID,
		UserType:  string(account.Role),
		Email:     account.Email,
		Timestamp: now,
	})

	return account, token, nil
}

// Login checks credentials, issues a token and makes it the subject's only
// live session.
func (s *AccountService) Login(ctx context.Context, email, password, ip string) (domain.Account, domain.IssuedToken, error) {
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, domain.IssuedToken{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, domain.IssuedToken{}, err
	}

	if !account.Active() {
		l.Info("login refused for inactive account",
			slog.String("user_id", account.ID),
			slog.String("status", string(account.Status)),
		)
		return account, domain.IssuedToken{}, ErrAccountInactive
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", slog.String("user_id", account.ID), slog.Any("error", err))
		}
		return domain.Account{}, domain.IssuedToken{}, ErrInvalidCredentials
	}

	token, err := s.Tokens.IssueFor(account)
	if err != nil {
		return domain.Account{}, domain.IssuedToken{}, err
	}
	if err := s.Tokens.StartSession(ctx, token); err != nil {
		return domain.Account{}, domain.IssuedToken{}, fmt.Errorf("start session: %w", err)
	}

	l.Info("login succeeded", slog.String("user_id", account.ID))
	s.Events.UserLoggedIn(ctx, events.AuthEvent{
		UserID:    account.ID,
		UserType:  string(account.Role),
		Email:     account.Email,
		Timestamp: s.now().UTC(),
		IP:        ip,
	})

	return account, token, nil
}

// Logout ends the subject's session and revokes token for the rest of its
// life. An expired but correctly signed token is still accepted so a
// client can always clear its session.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	claims, err := s.Tokens.VerifyIgnoringExpiry(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	subjectID := claims.SubjectID()

	if err := s.Tokens.EndSession(ctx, subjectID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if err := s.Tokens.revoke(ctx, token, claims); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	slogx.FromContext(ctx).Info("logout",
		slog.String("user_id", subjectID),
		slog.String("token", cryptox.FingerprintToken(token)),
	)
	s.Events.UserLoggedOut(ctx, events.AuthEvent{
		UserID:    subjectID,
		Timestamp: s.now().UTC(),
	})
	return nil
}

// Refresh exchanges a correctly signed token, expired or not, for a fresh
// one unless it has been revoked. The new token becomes the live session.
// A revocation only lasts until the token's own expiry, so a logged out
// token can be refreshed again after that.
func (s *AccountService) Refresh(ctx context.Context, token string) (domain.IssuedToken, error) {
	claims, err := s.Tokens.VerifyIgnoringExpiry(token)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	revoked, err := s.Tokens.IsRevoked(ctx, token)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return domain.IssuedToken{}, ErrRevoked
	}

	role := domain.Role(claims.Role)
	roleID := claims.ClientID
	if role == domain.RoleDriver {
		roleID = claims.DriverID
	}

	fresh, err := s.Tokens.Issue(claims.SubjectID(), claims.Email, role, roleID)
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if err := s.Tokens.StartSession(ctx, fresh); err != nil {
		return domain.IssuedToken{}, fmt.Errorf("start session: %w", err)
	}

	slogx.FromContext(ctx).Debug("token refreshed", slog.String("user_id", fresh.SubjectID))
	return fresh, nil
}

// Profile returns the account behind a subject id.
func (s *AccountService) Profile(ctx context.Context, subjectID string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, subjectID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrUserNotFound
	}
	return account, err
}
