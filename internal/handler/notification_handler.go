package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
)

// PendingLister exposes full pending records for inspection.
type PendingLister interface {
	ListPending(ctx context.Context, prefix string) ([]domain.Notification, error)
}

type NotificationHandler struct {
	pending PendingLister
}

func NewNotificationHandler(pending PendingLister) *NotificationHandler {
	return &NotificationHandler{
		pending: pending,
	}
}

type pendingResponse struct {
	Count         int                   `json:"count"`
	Notifications []domain.Notification `json:"notifications"`
}

// HandleListPending returns the caller's pending notifications, optionally
// narrowed to one medication via the "medication" query parameter.
func (h *NotificationHandler) HandleListPending(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.GetHeader(userIDHeader)
	if err := domain.ValidateUserID(userID); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	prefix := userID + "_"
	if medication := c.Query("medication"); medication != "" {
		prefix = domain.MedicationKey(userID, medication)
	}

	notifications, err := h.pending.ListPending(ctx, prefix)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list pending notifications",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "storage_error", "failed to list pending notifications")
		return
	}

	c.JSON(http.StatusOK, pendingResponse{
		Count:         len(notifications),
		Notifications: notifications,
	})
}
