package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	"github.com/icubam/icubam/internal/interfaces/dto"
	apperrors "github.com/icubam/icubam/internal/shared/errors"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// ScheduleHandler controls the report scheduler of the messaging server.
type ScheduleHandler struct {
	timers    timerController
	directory scheduleDirectory
	logger    logger.Interface
}

func NewScheduleHandler(timers timerController, directory scheduleDirectory, logger logger.Interface) *ScheduleHandler {
	return &ScheduleHandler{
		timers:    timers,
		directory: directory,
		logger:    logger,
	}
}

// OnOff handles POST /onoff.
func (h *ScheduleHandler) OnOff(c *gin.Context) {
	var req dto.OnOffRequest
	if !bindJSON(c, &req) {
		return
	}

	resp := dto.OnOffResponse{UserID: req.UserID}
	if req.On == nil || !*req.On {
		resp.Cancelled = h.timers.Cancel(req.UserID, req.ICUIDs...)
		h.logger.Infow("reminders switched off", "user_id", req.UserID, "cancelled", resp.Cancelled)
		utils.SuccessResponse(c, http.StatusOK, "", resp)
		return
	}

	resp.On = true
	if len(req.ICUIDs) == 0 {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("icu_ids is required when switching on"))
		return
	}
	ctx := c.Request.Context()
	u, err := h.directory.GetUser(ctx, req.UserID)
	if err != nil {
		h.lookupError(c, err)
		return
	}
	var delay *time.Duration
	if req.Delay != nil {
		d := time.Duration(*req.Delay) * time.Second
		delay = &d
	}
	for _, icuID := range req.ICUIDs {
		i, err := h.directory.GetICU(ctx, icuID)
		if err != nil {
			h.lookupError(c, err)
			return
		}
		if h.timers.Schedule(ctx, u, i, delay) {
			resp.Scheduled++
		}
	}
	h.logger.Infow("reminders switched on", "user_id", req.UserID, "scheduled", resp.Scheduled)
	utils.SuccessResponse(c, http.StatusOK, "", resp)
}

// Schedule handles POST /schedule: the pending timers of the ICUs the
// caller manages.
func (h *ScheduleHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	u, err := h.directory.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			utils.ErrorResponseWithError(c, apperrors.NewValidationError("unknown user"))
			return
		}
		h.lookupError(c, err)
		return
	}
	managed, err := h.directory.GetManagedICUs(ctx, u)
	if err != nil {
		h.lookupError(c, err)
		return
	}
	if len(managed) == 0 {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("user manages no icu"))
		return
	}

	icuIDs := make([]int64, 0, len(managed))
	for _, i := range managed {
		icuIDs = append(icuIDs, i.ID)
	}
	pending := h.timers.List(icuIDs)
	utils.SuccessResponse(c, http.StatusOK, "", dto.ToScheduledMessages(pending))
}

func (h *ScheduleHandler) lookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		utils.ErrorResponseWithError(c, apperrors.NewNotFoundError("user not found"))
	case errors.Is(err, icu.ErrNotFound):
		utils.ErrorResponseWithError(c, apperrors.NewNotFoundError("icu not found"))
	default:
		h.logger.Errorw("scheduler lookup failed", "error", err)
		utils.ErrorResponseWithError(c, err)
	}
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewBadRequestError("malformed request body", err.Error()))
		return false
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return false
	}
	return true
}
