package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/pkg/jwtx"
)

type ResourceType string

const (
	ResourceClient ResourceType = "client"
	ResourceDriver ResourceType = "driver"
	ResourceOrder  ResourceType = "order"
)

// OwnershipPolicy decides whether a non-admin caller may access a resource.
type OwnershipPolicy interface {
	CanAccess(ctx context.Context, claims jwtx.Claims, resource ResourceType, id string) (bool, error)
}

// PermissiveOwnership is the behaviour portal clients were built against:
// any client may reach client resources, any driver driver resources, and
// both may reach orders. Unknown resource types are denied.
type PermissiveOwnership struct{}

func (PermissiveOwnership) CanAccess(_ context.Context, c jwtx.Claims, resource ResourceType, id string) (bool, error) {
	switch resource {
	case ResourceClient:
		return c.ClientID == id || c.Role == string(domain.RoleClient), nil
	case ResourceDriver:
		return c.DriverID == id || c.Role == string(domain.RoleDriver), nil
	case ResourceOrder:
		return c.Role == string(domain.RoleClient) || c.Role == string(domain.RoleDriver), nil
	default:
		return false, nil
	}
}

// OrderLookup finds an order by id. service.OrderService implements it.
type OrderLookup interface {
	Get(ctx context.Context, id string) (domain.Order, error)
}

// StrictOwnership admits callers only to resources that are theirs: their
// own client or driver record, and orders they placed or were assigned.
type StrictOwnership struct {
	Orders OrderLookup
}

func (p StrictOwnership) CanAccess(ctx context.Context, c jwtx.Claims, resource ResourceType, id string) (bool, error) {
	switch resource {
	case ResourceClient:
		return c.ClientID != "" && c.ClientID == id, nil
	case ResourceDriver:
		return c.DriverID != "" && c.DriverID == id, nil
	case ResourceOrder:
		if p.Orders == nil {
			return false, errors.New("strict ownership: no order lookup configured")
		}
		order, err := p.Orders.Get(ctx, id)
		if errors.Is(err, service.ErrOrderNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		switch c.Role {
		case string(domain.RoleClient):
			return c.ClientID != "" && order.ClientID == c.ClientID, nil
		case string(domain.RoleDriver):
			return c.DriverID != "" && order.DriverID == c.DriverID, nil
		}
		return false, nil
	default:
		return false, nil
	}
}

// ParsePolicy selects a policy by name: "permissive" (the default when
// name is empty) or "strict".
func ParsePolicy(name string, orders OrderLookup) (OwnershipPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "permissive":
		return PermissiveOwnership{}, nil
	case "strict":
		return StrictOwnership{Orders: orders}, nil
	default:
		return nil, fmt.Errorf("unknown ownership policy %q", name)
	}
}

const maxOwnershipBody = 1 << 20

// resourceID reads field from the route pattern, then from a JSON object
// body. The body is restored for the next handler.
func resourceID(r *http.Request, field string) string {
	if id := r.PathValue(field); id != "" {
		return id
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxOwnershipBody))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	switch v := fields[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}
