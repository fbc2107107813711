package gatewaysdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SDKClient is a client for the SwiftLogistics API gateway.
// It provides access to unauthenticated operations and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new gateway client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates a client or driver account. The returned token is valid
// but no server-side session exists until the user logs in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", "", req)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with email and password and returns a Session holding
// the issued token.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return c.NewSession(out.Data.Token, out.Data.User), nil
}

// NewSession wraps an existing token, for example one returned by Register.
func (c *SDKClient) NewSession(token string, user UserInfo) *Session {
	return &Session{client: c, token: token, user: user}
}

// Logout revokes token. It works without a Session so callers can clear a
// token they only hold as a string.
func (c *SDKClient) Logout(ctx context.Context, token string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/logout", token, nil)
	if err != nil {
		return err
	}

	var out MessageResponse
	return decodeJSON(resp, &out, http.StatusOK)
}

// Refresh exchanges token for a fresh one.
func (c *SDKClient) Refresh(ctx context.Context, token string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/refresh", token, nil)
	if err != nil {
		return "", err
	}

	var out RefreshResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.Data.Token, nil
}

// TrackOrder returns the public status of an order. token may be empty;
// owners and admins get a richer view.
func (c *SDKClient) TrackOrder(ctx context.Context, token, orderID string) (*OrderTracking, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID)+"/status", token, nil)
	if err != nil {
		return nil, err
	}

	var out OrderTrackingResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Data, nil
}
