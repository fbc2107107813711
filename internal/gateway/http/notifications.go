package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/pkg/gatewaysdk"
	"github.com/swiftlogistics/platform/pkg/httpx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

type NotificationHandler struct {
	Notifications store.Notifications
}

// ServeHTTP lists the caller's notifications.
//
//	@Summary		List notifications
//	@Description	Returns notifications written by the notification service for the authenticated user, newest first.
//	@Tags			Notifications
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int									false	"Page size (default 50, max 500)"
//	@Success		200		{object}	gatewaysdk.NotificationListResponse	"Notifications"
//	@Failure		401		{object}	gatewaysdk.ErrorResponse			"Not authenticated"
//	@Router			/api/notifications [get].
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.Notifications.ListNotifications(r.Context(), claims.SubjectID(), limit)
	if err != nil {
		slogx.FromContext(r.Context()).Error("list notifications failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, gatewaysdk.CodeInternal, "Internal server error")
		return
	}

	out := make([]gatewaysdk.NotificationInfo, len(list))
	for i, n := range list {
		out[i] = gatewaysdk.NotificationInfo{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Data:      n.Data,
			CreatedAt: n.CreatedAt,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, gatewaysdk.NotificationListResponse{
		Message: "Notifications retrieved successfully",
		Code:    "NOTIFICATIONS_RETRIEVED",
		Data:    gatewaysdk.NotificationListData{Notifications: out, Count: len(out)},
	})
}
