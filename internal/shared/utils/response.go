package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/shared/errors"
)

// APIResponse is the envelope of every JSON response of the www and
// messaging servers. Exports of /db are written raw, without it.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{Success: true, Data: data, Message: message})
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	fail(c, statusCode, ErrorInfo{Type: "error", Message: message})
}

// ErrorResponseWithError renders an AppError with its own status. Any other
// error becomes an opaque 500 so internals never reach the client.
func ErrorResponseWithError(c *gin.Context, err error) {
	if appErr := errors.GetAppError(err); appErr != nil {
		fail(c, appErr.Code, ErrorInfo{Type: string(appErr.Type), Message: appErr.Message, Details: appErr.Details})
		return
	}
	fail(c, http.StatusInternalServerError, ErrorInfo{
		Type:    string(errors.ErrorTypeInternal),
		Message: "Internal server error occurred",
	})
}

func fail(c *gin.Context, statusCode int, info ErrorInfo) {
	c.JSON(statusCode, APIResponse{Error: &info})
}
