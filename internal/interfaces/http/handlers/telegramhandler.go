package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/infrastructure/telegram"
	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// TelegramHandler receives Bot API webhook deliveries.
type TelegramHandler struct {
	updates updateHandler
	secret  string
	logger  logger.Interface
}

// NewTelegramHandler checks the secret token header when secret is set.
func NewTelegramHandler(updates updateHandler, secret string, logger logger.Interface) *TelegramHandler {
	return &TelegramHandler{
		updates: updates,
		secret:  secret,
		logger:  logger,
	}
}

// Webhook handles POST /telegram. Handled updates are always acknowledged
// with 200 so that Telegram does not redeliver them.
func (h *TelegramHandler) Webhook(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(constants.HeaderTelegramToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warnw("webhook secret verification failed", "received_secret_empty", got == "")
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warnw("failed to parse webhook update", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.updates.HandleUpdate(c.Request.Context(), &update); err != nil {
		h.logger.Errorw("failed to handle telegram update", "update_id", update.UpdateID, "error", err)
	}
	c.Status(http.StatusOK)
}
