package middleware

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
)

// secretParams are query parameters that carry bearer credentials.
var secretParams = []string{constants.QueryParamUpdateID, constants.QueryParamAPIKey}

func Logger(log logger.Interface) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		args := []any{
			"method", param.Method,
			"path", redactQuery(param.Path),
			"status", param.StatusCode,
			"latency", param.Latency,
			"client_ip", param.ClientIP,
			"user_agent", param.Request.UserAgent(),
		}

		if param.ErrorMessage != "" {
			args = append(args, "error", param.ErrorMessage)
		}

		if param.StatusCode >= 500 {
			log.Errorw("HTTP request completed", args...)
		} else if param.StatusCode >= 400 {
			log.Warnw("HTTP request completed", args...)
		} else {
			log.Debugw("HTTP request completed", args...)
		}

		return ""
	})
}

// redactQuery masks credential values in a path that may carry a query.
func redactQuery(path string) string {
	i := strings.IndexByte(path, '?')
	if i < 0 {
		return path
	}
	q, err := url.ParseQuery(path[i+1:])
	if err != nil {
		return path[:i]
	}
	for _, p := range secretParams {
		if v := q.Get(p); v != "" {
			q.Set(p, logger.Mask(v))
		}
	}
	return path[:i+1] + q.Encode()
}
