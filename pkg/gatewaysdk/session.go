package gatewaysdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

// ErrNoToken is returned by Session methods after Logout.
var ErrNoToken = errors.New("session has no token")

// Session represents an authenticated user. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu    sync.RWMutex
	token string
	user  UserInfo
}

// Token returns the current bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the account the session was opened for.
func (s *Session) User() UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) currentToken() (string, error) {
	token := s.Token()
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Logout revokes the session's token and clears it locally.
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.currentToken()
	if err != nil {
		return err
	}
	if err := s.client.Logout(ctx, token); err != nil {
		return err
	}

	s.mu.Lock()
	if s.token == token {
		s.token = ""
	}
	s.mu.Unlock()
	return nil
}

// Refresh swaps the session's token for a fresh one.
func (s *Session) Refresh(ctx context.Context) error {
	token, err := s.currentToken()
	if err != nil {
		return err
	}

	fresh, err := s.client.Refresh(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = fresh
	s.mu.Unlock()
	return nil
}

// Profile returns the full account record of the session's user.
func (s *Session) Profile(ctx context.Context) (*UserInfo, error) {
	var out ProfileResponse
	if err := s.do(ctx, http.MethodGet, "/api/auth/profile", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Data.User, nil
}

// CreateOrder places an order. Only client accounts may create orders.
func (s *Session) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderInfo, error) {
	var out OrderResponse
	if err := s.do(ctx, http.MethodPost, "/api/orders", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out.Data.Order, nil
}

// ListOrdersOptions narrows ListOrders. Zero fields are not sent.
type ListOrdersOptions struct {
	Status string
	Limit  int
	Offset int
}

// ListOrders returns the orders visible to the session's user, newest
// first. Clients see their own orders, drivers their assigned orders and
// admins every order.
func (s *Session) ListOrders(ctx context.Context, opts ListOrdersOptions) ([]OrderInfo, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out OrderListResponse
	if err := s.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Data.Orders, nil
}

func (s *Session) GetOrder(ctx context.Context, id string) (*OrderInfo, error) {
	var out OrderResponse
	if err := s.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Data.Order, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Requires a driver
// or admin account.
func (s *Session) UpdateOrderStatus(ctx context.Context, id, status string) (*OrderInfo, error) {
	var out OrderResponse
	req := UpdateOrderStatusRequest{Status: status}
	if err := s.do(ctx, http.MethodPatch, "/api/orders/"+url.PathEscape(id)+"/status", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Data.Order, nil
}

// TrackOrder is SDKClient.TrackOrder with the session's token.
func (s *Session) TrackOrder(ctx context.Context, id string) (*OrderTracking, error) {
	return s.client.TrackOrder(ctx, s.Token(), id)
}

// ListNotifications returns the user's notifications, newest first.
func (s *Session) ListNotifications(ctx context.Context, limit int) ([]NotificationInfo, error) {
	path := "/api/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out NotificationListResponse
	if err := s.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Data.Notifications, nil
}

func (s *Session) do(ctx context.Context, method, path string, payload, target any, expectedStatus int) error {
	token, err := s.currentToken()
	if err != nil {
		return err
	}

	resp, err := s.client.doRequest(ctx, method, path, token, payload)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, expectedStatus)
}
