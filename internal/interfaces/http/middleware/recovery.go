package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// credentialHeaders are logged as present or absent, never by value.
var credentialHeaders = []string{constants.HeaderAuthorization, "Cookie", constants.HeaderTelegramToken}

// Recovery turns a handler panic into a 500 JSON envelope. The log entry
// carries the path without its query, since /update and /db take their
// credentials there.
func Recovery(log logger.Interface) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		req := c.Request
		if clientGone(recovered) {
			log.Warnw("client went away mid-response", "method", req.Method, "path", req.URL.Path, "error", recovered)
			c.Abort()
			return
		}

		log.Errorw("panic recovered",
			"method", req.Method,
			"path", req.URL.Path,
			"headers", redactHeaders(req.Header),
			"error", recovered,
			"stack", string(debug.Stack()))

		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error occurred")
	})
}

func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, name := range credentialHeaders {
		if out.Get(name) != "" {
			out.Set(name, "*")
		}
	}
	return out
}

// clientGone reports a write to a connection the peer already closed.
func clientGone(recovered any) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
