package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/service/schedule"
)

const userIDHeader = "X-User-ID"

type MedicationHandler struct {
	store     domain.MedicationStore
	scheduler *schedule.Service
}

func NewMedicationHandler(store domain.MedicationStore, scheduler *schedule.Service) *MedicationHandler {
	return &MedicationHandler{
		store:     store,
		scheduler: scheduler,
	}
}

type medicationResponse struct {
	Medication *domain.Medication   `json:"medication"`
	Pass       *schedule.PassResult `json:"pass"`
}

// HandleCreate saves a medication and runs a scheduling pass for it.
func (h *MedicationHandler) HandleCreate(c *gin.Context) {
	h.upsert(c, "")
}

// HandleUpdate replaces a medication by name and reschedules it.
func (h *MedicationHandler) HandleUpdate(c *gin.Context) {
	h.upsert(c, c.Param("name"))
}

func (h *MedicationHandler) upsert(c *gin.Context, name string) {
	ctx := c.Request.Context()

	userID := c.GetHeader(userIDHeader)
	if err := domain.ValidateUserID(userID); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var med domain.Medication
	if err := c.ShouldBindJSON(&med); err != nil {
		slog.WarnContext(ctx, "medication unmarshal failed",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	med.UserID = userID
	if name != "" {
		med.Name = name
	}

	if err := med.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := h.store.Save(ctx, &med); err != nil {
		slog.ErrorContext(ctx, "failed to save medication",
			slog.String("user_id", userID),
			slog.String("name", med.Name),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "storage_error", "failed to save medication")
		return
	}

	pass, err := h.scheduler.Schedule(ctx, &med)
	if err != nil {
		slog.ErrorContext(ctx, "scheduling pass failed",
			slog.String("user_id", userID),
			slog.String("name", med.Name),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "scheduling_error", "medication saved but scheduling failed")
		return
	}

	c.JSON(http.StatusOK, medicationResponse{
		Medication: &med,
		Pass:       pass,
	})
}

// HandleDelete removes a medication and cancels all of its pending
// notifications.
func (h *MedicationHandler) HandleDelete(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.GetHeader(userIDHeader)
	if err := domain.ValidateUserID(userID); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	name := c.Param("name")

	if err := h.store.Delete(ctx, userID, name); err != nil {
		if errors.Is(err, domain.ErrMedicationNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "medication not found")
			return
		}
		slog.ErrorContext(ctx, "failed to delete medication",
			slog.String("user_id", userID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "storage_error", "failed to delete medication")
		return
	}

	pass, err := h.scheduler.Remove(ctx, userID, name)
	if err != nil {
		slog.ErrorContext(ctx, "cancellation failed for deleted medication",
			slog.String("user_id", userID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "scheduling_error", "medication deleted but cancellation failed")
		return
	}

	c.JSON(http.StatusOK, medicationResponse{Pass: pass})
}

// HandleResync re-runs a scheduling pass over every stored medication of
// the calling user.
func (h *MedicationHandler) HandleResync(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.GetHeader(userIDHeader)
	if err := domain.ValidateUserID(userID); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.scheduler.ResyncUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "resync failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "scheduling_error", "resync failed")
		return
	}

	c.JSON(http.StatusOK, result)
}
