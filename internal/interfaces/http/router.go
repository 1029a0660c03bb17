package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/interfaces/http/middleware"
	"github.com/icubam/icubam/internal/shared/logger"
)

// Router is the gin engine of one server component.
type Router struct {
	engine *gin.Engine
	c      *Container
	log    logger.Interface
}

// NewWWWRouter serves the operator form, the external data API and the
// public map.
func NewWWWRouter(c *Container) *Router {
	r := newRouter(c, "www")
	r.setupWWWRoutes()
	return r
}

// NewMessagingRouter serves the scheduler control routes and the chat-bot
// webhook.
func NewMessagingRouter(c *Container) *Router {
	r := newRouter(c, "messaging")
	r.setupMessagingRoutes()
	return r
}

func newRouter(c *Container, component string) *Router {
	log := logger.WithComponent("http." + component)
	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.Logger(log))
	engine.Use(middleware.Metrics(c.metrics))
	engine.Use(middleware.SecurityHeaders())
	return &Router{engine: engine, c: c, log: log}
}

// setupWWWRoutes configures the public server
func (r *Router) setupWWWRoutes() {
	c := r.c
	trusted := middleware.TrustedHosts(c.cfg.Server.TrustedHosts)
	updateLimit := middleware.NewRateLimiter(c.limiter, "update", c.cfg.RateLimit.UpdatePerMinute, time.Minute, r.log)
	// /db also answers on the public name of the server.
	dbHosts := middleware.TrustedHosts(c.cfg.Server.DBHosts())
	dbLimit := middleware.NewRateLimiter(c.limiter, "db", c.cfg.RateLimit.DBPerMinute, time.Minute, r.log)

	r.engine.GET("/", c.homeHandler.Home)
	r.engine.GET("/health", c.homeHandler.HealthCheck)
	r.engine.GET("/metrics", trusted, gin.WrapH(c.metrics.Handler()))

	update := r.engine.Group("/update", updateLimit.Limit())
	{
		update.GET("", c.updateHandler.Form)
		update.POST("", c.updateHandler.Submit)
	}

	r.engine.GET("/db/:collection", dbHosts, dbLimit.Limit(), c.externalHandler.DB)

	api := r.engine.Group("/api", middleware.CORS(c.cfg.Server.AllowedOrigins))
	{
		api.GET("/map", c.externalHandler.Map)
		api.OPTIONS("/map", func(ctx *gin.Context) {})
	}
}

// setupMessagingRoutes configures the internal messaging server
func (r *Router) setupMessagingRoutes() {
	c := r.c
	trusted := middleware.TrustedHosts(c.cfg.Server.TrustedHosts)

	r.engine.GET("/", c.messagingHomeHandler.Home)
	r.engine.GET("/health", c.messagingHomeHandler.HealthCheck)
	r.engine.GET("/metrics", trusted, gin.WrapH(c.metrics.Handler()))

	control := r.engine.Group("", trusted)
	{
		control.POST("/onoff", c.scheduleHandler.OnOff)
		control.POST("/schedule", c.scheduleHandler.Schedule)
	}

	if c.telegramHandler != nil {
		r.engine.POST("/telegram",
			middleware.AllowNetworks(middleware.TelegramNetworks, r.log),
			c.telegramHandler.Webhook,
		)
	}
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
