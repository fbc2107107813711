package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/pkg/gatewaysdk"
	"github.com/swiftlogistics/platform/pkg/httpx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

type OrderHandler struct {
	Orders *service.OrderService
}

// writeOrderError maps order service errors to responses.
func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		httpx.WriteError(w, http.StatusNotFound, gatewaysdk.CodeOrderNotFound, "Order not found")
	case errors.Is(err, service.ErrInvalidOrder):
		httpx.WriteError(w, http.StatusBadRequest, gatewaysdk.CodeValidation, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, gatewaysdk.CodeInvalidTransition, err.Error())
	case errors.Is(err, store.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, gatewaysdk.CodeConflict, "Order was modified concurrently, retry")
	default:
		slogx.FromContext(r.Context()).Error("order operation failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, gatewaysdk.CodeInternal, "Internal server error")
	}
}

// HandleCreate places an order for the calling client.
//
//	@Summary		Create an order
//	@Description	Places an order for the authenticated client. Item totals are computed when omitted. Publishes order.created.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		gatewaysdk.CreateOrderRequest	true	"Order"
//	@Success		201		{object}	gatewaysdk.OrderResponse		"Order created"
//	@Failure		400		{object}	gatewaysdk.ErrorResponse		"Validation failed"
//	@Failure		401		{object}	gatewaysdk.ErrorResponse		"Not authenticated"
//	@Failure		403		{object}	gatewaysdk.ErrorResponse		"Caller is not a client"
//	@Router			/api/orders [post].
func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	if claims.ClientID == "" {
		httpx.WriteError(w, http.StatusForbidden, gatewaysdk.CodeForbidden, "Token carries no client id")
		return
	}

	var req gatewaysdk.CreateOrderRequest
	if !readJSON(w, r, &req) {
		return
	}
	if writeValidation(w, req.Validate()) {
		return
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}

	order, err := h.Orders.Create(r.Context(), service.CreateOrderInput{
		ClientID: claims.ClientID,
		Items:    items,
		DeliveryAddress: domain.Address{
			Street:     req.DeliveryAddress.Street,
			City:       req.DeliveryAddress.City,
			PostalCode: req.DeliveryAddress.PostalCode,
		},
		Priority: domain.OrderPriority(req.Priority),
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, gatewaysdk.OrderResponse{
		Message: "Order created successfully",
		Code:    "ORDER_CREATED",
		Data:    gatewaysdk.OrderData{Order: orderInfo(order)},
	})
}

// HandleList lists the orders visible to the caller.
//
//	@Summary		List orders
//	@Description	Clients see their own orders, drivers the orders assigned to them and admins every order, newest first.
//	@Tags			Orders
//	@Produce		json
//	@Security		BearerAuth
//	@Param			status		query		string	false	"Filter by status"
//	@Param			clientId	query		string	false	"Filter by client (admins only)"
//	@Param			driverId	query		string	false	"Filter by driver (admins only)"
//	@Param			limit		query		int		false	"Page size (default 50, max 500)"
//	@Param			offset		query		int		false	"Offset"
//	@Success		200			{object}	gatewaysdk.OrderListResponse	"Orders"
//	@Failure		400			{object}	gatewaysdk.ErrorResponse		"Invalid query"
//	@Failure		401			{object}	gatewaysdk.ErrorResponse		"Not authenticated"
//	@Router			/api/orders [get].
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	q := r.URL.Query()

	filter := store.OrderFilter{Status: domain.OrderStatus(q.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		writeValidation(w, map[string]string{"status": "unknown order status"})
		return
	}

	errs := make(map[string]string)
	filter.Limit = queryInt(q.Get("limit"), "limit", errs)
	filter.Offset = queryInt(q.Get("offset"), "offset", errs)
	if writeValidation(w, errs) {
		return
	}

	switch domain.Role(claims.Role) {
	case domain.RoleClient:
		filter.ClientID = claims.ClientID
	case domain.RoleDriver:
		filter.DriverID = claims.DriverID
	case domain.RoleAdmin:
		filter.ClientID = q.Get("clientId")
		filter.DriverID = q.Get("driverId")
	default:
		httpx.WriteError(w, http.StatusForbidden, gatewaysdk.CodeForbidden, "Access denied. Insufficient permissions.")
		return
	}

	// A client or driver token without its role id would otherwise match
	// every order.
	if claims.Role != string(domain.RoleAdmin) && filter.ClientID == "" && filter.DriverID == "" {
		httpx.WriteJSON(w, http.StatusOK, gatewaysdk.OrderListResponse{
			Message: "Orders retrieved successfully",
			Code:    "ORDERS_RETRIEVED",
			Data:    gatewaysdk.OrderListData{Orders: []gatewaysdk.OrderInfo{}},
		})
		return
	}

	orders, err := h.Orders.List(r.Context(), filter)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	out := make([]gatewaysdk.OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(o)
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.OrderListResponse{
		Message: "Orders retrieved successfully",
		Code:    "ORDERS_RETRIEVED",
		Data:    gatewaysdk.OrderListData{Orders: out, Count: len(out)},
	})
}

func queryInt(v, field string, errs map[string]string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		errs[field] = "must be a non-negative integer"
		return 0
	}
	return n
}

// HandleGet returns one order.
//
//	@Summary		Get an order
//	@Tags			Orders
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string						true	"Order id"
//	@Success		200	{object}	gatewaysdk.OrderResponse	"Order"
//	@Failure		401	{object}	gatewaysdk.ErrorResponse	"Not authenticated"
//	@Failure		403	{object}	gatewaysdk.ErrorResponse	"Not the caller's order"
//	@Failure		404	{object}	gatewaysdk.ErrorResponse	"Order not found"
//	@Router			/api/orders/{id} [get].
func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.OrderResponse{
		Message: "Order retrieved successfully",
		Code:    "ORDER_RETRIEVED",
		Data:    gatewaysdk.OrderData{Order: orderInfo(order)},
	})
}

// HandleUpdateStatus moves an order along its lifecycle.
//
//	@Summary		Update order status
//	@Description	Moves an order to the next status if the lifecycle allows it. Publishes order.updated.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string								true	"Order id"
//	@Param			request	body		gatewaysdk.UpdateOrderStatusRequest	true	"New status"
//	@Success		200		{object}	gatewaysdk.OrderResponse			"Updated order"
//	@Failure		400		{object}	gatewaysdk.ErrorResponse			"Validation failed"
//	@Failure		403		{object}	gatewaysdk.ErrorResponse			"Caller may not update this order"
//	@Failure		404		{object}	gatewaysdk.ErrorResponse			"Order not found"
//	@Failure		409		{object}	gatewaysdk.ErrorResponse			"Transition not allowed or concurrent update"
//	@Router			/api/orders/{id}/status [patch].
func (h *OrderHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req gatewaysdk.UpdateOrderStatusRequest
	if !readJSON(w, r, &req) {
		return
	}
	if writeValidation(w, req.Validate()) {
		return
	}

	order, err := h.Orders.UpdateStatus(r.Context(), r.PathValue("id"), domain.OrderStatus(req.Status))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.OrderResponse{
		Message: "Order status updated successfully",
		Code:    "ORDER_STATUS_UPDATED",
		Data:    gatewaysdk.OrderData{Order: orderInfo(order)},
	})
}

// HandleTrack returns the public status of an order.
//
//	@Summary		Track an order
//	@Description	Public status lookup. A token is optional; the owning client, the assigned driver and admins also see the order number and total.
//	@Tags			Orders
//	@Produce		json
//	@Param			id	path		string								true	"Order id"
//	@Success		200	{object}	gatewaysdk.OrderTrackingResponse	"Status"
//	@Failure		404	{object}	gatewaysdk.ErrorResponse			"Order not found"
//	@Router			/api/orders/{id}/status [get].
func (h *OrderHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	tracking := gatewaysdk.OrderTracking{
		ID:        order.ID,
		Status:    string(order.Status),
		UpdatedAt: order.UpdatedAt,
	}

	if claims, ok := httpx.ClaimsFromContext(r.Context()); ok {
		owner := claims.Role == string(domain.RoleAdmin) ||
			(claims.ClientID != "" && claims.ClientID == order.ClientID) ||
			(claims.DriverID != "" && claims.DriverID == order.DriverID)
		if owner {
			total := order.TotalAmount
			tracking.OrderNumber = order.OrderNumber
			tracking.TotalAmount = &total
		}
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.OrderTrackingResponse{
		Message: "Order status retrieved successfully",
		Code:    "ORDER_STATUS_RETRIEVED",
		Data:    tracking,
	})
}
