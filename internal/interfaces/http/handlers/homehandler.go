package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pagetmpl "github.com/icubam/icubam/internal/infrastructure/template"
	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

// HomeHandler serves the landing page and the health probe.
type HomeHandler struct {
	component string
	pages     pageRenderer
	checks    map[string]HealthChecker
	logger    logger.Interface
}

// NewHomeHandler names the server component in health responses. pages may
// be nil on servers without HTML pages.
func NewHomeHandler(component string, pages pageRenderer, checks map[string]HealthChecker, logger logger.Interface) *HomeHandler {
	return &HomeHandler{
		component: component,
		pages:     pages,
		checks:    checks,
		logger:    logger,
	}
}

// Home handles GET /.
func (h *HomeHandler) Home(c *gin.Context) {
	if h.pages == nil {
		c.String(http.StatusOK, "ICUBAM "+h.component)
		return
	}
	var buf bytes.Buffer
	err := h.pages.Render(&buf, pagetmpl.PageHome, map[string]interface{}{
		"Disclaimer": h.pages.Disclaimer(),
	})
	if err != nil {
		h.logger.Errorw("failed to render home page", "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Data(http.StatusOK, constants.ContentTypeHTML, buf.Bytes())
}

// HealthCheck handles GET /health.
func (h *HomeHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warnw("health check failed", "check", name, "error", err)
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"component": h.component,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
