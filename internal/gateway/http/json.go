package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/pkg/gatewaysdk"
	"github.com/swiftlogistics/platform/pkg/httpx"
)

const maxBodyBytes = 1 << 20

// readJSON decodes the request body into v. On failure it writes a 400
// and returns false.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := "Request body must be valid JSON"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		httpx.WriteError(w, http.StatusBadRequest, gatewaysdk.CodeValidation, msg)
		return false
	}
	return true
}

// writeValidation reports field errors. Returns false when errs is empty.
func writeValidation(w http.ResponseWriter, errs map[string]string) bool {
	if len(errs) == 0 {
		return false
	}
	httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{
		Error:   "Validation failed",
		Code:    gatewaysdk.CodeValidation,
		Details: errs,
	})
	return true
}

func userInfo(a domain.Account) gatewaysdk.UserInfo {
	return gatewaysdk.UserInfo{
		ID:       a.ID,
		Name:     a.Name,
		Email:    a.Email,
		Role:     string(a.Role),
		ClientID: a.ClientID(),
		DriverID: a.DriverID(),
	}
}

// profileInfo is userInfo plus the contact and audit fields.
func profileInfo(a domain.Account) gatewaysdk.UserInfo {
	u := userInfo(a)
	u.Phone = a.Phone
	u.Status = string(a.Status)
	u.CreatedAt = timePtr(a.CreatedAt)
	u.UpdatedAt = timePtr(a.UpdatedAt)
	return u
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func orderInfo(o domain.Order) gatewaysdk.OrderInfo {
	items := make([]gatewaysdk.OrderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = gatewaysdk.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}

	return gatewaysdk.OrderInfo{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ClientID:    o.ClientID,
		DriverID:    o.DriverID,
		Items:       items,
		DeliveryAddress: gatewaysdk.Address{
			Street:     o.DeliveryAddress.Street,
			City:       o.DeliveryAddress.City,
			PostalCode: o.DeliveryAddress.PostalCode,
		},
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		Priority:    string(o.Priority),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
