package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/pkg/gatewaysdk"
	"github.com/swiftlogistics/platform/pkg/httpx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

type AuthHandler struct {
	Accounts *service.AccountService
}

// HandleRegister creates a client or driver account.
//
//	@Summary		Register an account
//	@Description	Creates a client or driver account and returns a token for it. No session is recorded until the first login.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		gatewaysdk.RegisterRequest	true	"Account details"
//	@Success		201		{object}	gatewaysdk.AuthResponse		"Account created"
//	@Failure		400		{object}	gatewaysdk.ErrorResponse	"Validation failed or invalid role"
//	@Failure		409		{object}	gatewaysdk.ErrorResponse	"Email already registered"
//	@Failure		429		{object}	gatewaysdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500		{object}	gatewaysdk.ErrorResponse	"Internal error"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req gatewaysdk.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}
	if writeValidation(w, req.Validate()) {
		return
	}

	role := domain.Role(req.Role)
	roleID := req.ClientID
	if role == domain.RoleDriver {
		roleID = req.DriverID
	}

	account, token, err := h.Accounts.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		Phone:    strings.TrimSpace(req.Phone),
		Address:  strings.TrimSpace(req.Address),
		RoleID:   roleID,
		IP:       httpx.IPKeyExtractor(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			httpx.WriteError(w, http.StatusConflict, gatewaysdk.CodeUserExists, "User with this email already exists")
		case errors.Is(err, service.ErrInvalidRole):
			httpx.WriteError(w, http.StatusBadRequest, gatewaysdk.CodeInvalidRole, "Invalid role specified")
		default:
			slogx.FromContext(r.Context()).Error("registration failed", slog.Any("error", err))
			httpx.WriteError(w, http.StatusInternalServerError, "REGISTRATION_ERROR", "Internal server error during registration")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, gatewaysdk.AuthResponse{
		Message: "User registered successfully",
		Code:    "REGISTRATION_SUCCESS",
		Data:    gatewaysdk.AuthData{Token: token.Token, User: userInfo(account)},
	})
}

// HandleLogin exchanges credentials for a token.
//
//	@Summary		Log in
//	@Description	Checks email and password and issues a 24 hour token. The token replaces any earlier session of the same user.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		gatewaysdk.LoginRequest		true	"Credentials"
//	@Success		200		{object}	gatewaysdk.AuthResponse		"Logged in"
//	@Failure		400		{object}	gatewaysdk.ErrorResponse	"Validation failed"
//	@Failure		401		{object}	gatewaysdk.ErrorResponse	"Invalid credentials or inactive account"
//	@Failure		429		{object}	gatewaysdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500		{object}	gatewaysdk.ErrorResponse	"Internal error"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req gatewaysdk.LoginRequest
	if !readJSON(w, r, &req) {
		return
	}
	if writeValidation(w, req.Validate()) {
		return
	}

	account, token, err := h.Accounts.Login(r.Context(), req.Email, req.Password, httpx.IPKeyExtractor(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, gatewaysdk.CodeInvalidCredentials, "Invalid email or password")
		case errors.Is(err, service.ErrAccountInactive):
			httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{
				Error:   "Account is not active",
				Code:    gatewaysdk.CodeAccountInactive,
				Details: map[string]string{"status": string(account.Status)},
			})
		default:
			slogx.FromContext(r.Context()).Error("login failed", slog.Any("error", err))
			httpx.WriteError(w, http.StatusInternalServerError, "LOGIN_ERROR", "Internal server error during login")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.AuthResponse{
		Message: "Login successful",
		Code:    "LOGIN_SUCCESS",
		Data:    gatewaysdk.AuthData{Token: token.Token, User: userInfo(account)},
	})
}

// HandleLogout ends the caller's session and revokes the token.
//
//	@Summary		Log out
//	@Description	Deletes the caller's session and blacklists the token until it would have expired. Expired but correctly signed tokens are accepted.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	gatewaysdk.MessageResponse	"Logged out"
//	@Failure		400	{object}	gatewaysdk.ErrorResponse	"No token or invalid token"
//	@Failure		500	{object}	gatewaysdk.ErrorResponse	"Internal error"
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := httpx.BearerToken(r)
	if errors.Is(err, httpx.ErrNoToken) {
		httpx.WriteError(w, http.StatusBadRequest, gatewaysdk.CodeNoToken, "No token provided for logout")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, gatewaysdk.CodeInvalidToken, "Invalid token")
		return
	}

	if err := h.Accounts.Logout(r.Context(), token); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			httpx.WriteError(w, http.StatusBadRequest, gatewaysdk.CodeInvalidToken, "Invalid token")
			return
		}
		slogx.FromContext(r.Context()).Error("logout failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "LOGOUT_ERROR", "Internal server error during logout")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.MessageResponse{
		Message: "Logout successful",
		Code:    "LOGOUT_SUCCESS",
	})
}

// HandleRefresh exchanges a token for a fresh one.
//
//	@Summary		Refresh a token
//	@Description	Issues a new 24 hour token for a correctly signed, unrevoked token, expired or not. The new token becomes the live session.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	gatewaysdk.RefreshResponse	"New token"
//	@Failure		400	{object}	gatewaysdk.ErrorResponse	"No token provided"
//	@Failure		401	{object}	gatewaysdk.ErrorResponse	"Invalid or revoked token"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := httpx.BearerToken(r)
	if errors.Is(err, httpx.ErrNoToken) {
		httpx.WriteError(w, http.StatusBadRequest, gatewaysdk.CodeNoToken, "No token provided")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, gatewaysdk.CodeInvalidToken, "Invalid token")
		return
	}

	fresh, err := h.Accounts.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrRevoked) {
			httpx.WriteError(w, http.StatusUnauthorized, gatewaysdk.CodeTokenRevoked, "Token has been revoked")
			return
		}
		if !errors.Is(err, service.ErrInvalidToken) {
			slogx.FromContext(r.Context()).Error("token refresh failed", slog.Any("error", err))
		}
		httpx.WriteError(w, http.StatusUnauthorized, gatewaysdk.CodeInvalidToken, "Invalid token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.RefreshResponse{
		Message: "Token refreshed successfully",
		Code:    "TOKEN_REFRESH_SUCCESS",
		Data:    gatewaysdk.TokenData{Token: fresh.Token},
	})
}

// HandleProfile returns the caller's account.
//
//	@Summary		Get profile
//	@Description	Returns the full account record of the authenticated caller.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	gatewaysdk.ProfileResponse	"Profile"
//	@Failure		401	{object}	gatewaysdk.ErrorResponse	"Missing, invalid, expired or revoked token"
//	@Failure		404	{object}	gatewaysdk.ErrorResponse	"Account no longer exists"
//	@Failure		500	{object}	gatewaysdk.ErrorResponse	"Internal error"
//	@Router			/api/auth/profile [get].
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, gatewaysdk.CodeNoToken, "No token provided")
		return
	}

	account, err := h.Accounts.Profile(r.Context(), claims.SubjectID())
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, gatewaysdk.CodeUserNotFound, "User not found")
			return
		}
		slogx.FromContext(r.Context()).Error("profile lookup failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "PROFILE_ERROR", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.ProfileResponse{
		Message: "Profile retrieved successfully",
		Code:    "PROFILE_RETRIEVED",
		Data:    gatewaysdk.ProfileData{User: profileInfo(account)},
	})
}
