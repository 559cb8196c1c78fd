package router

import (
	"net/http"
	"strings"

	"pinkchat/backend/internal/api"
	"pinkchat/backend/internal/ws"
	"pinkchat/backend/pkg/config"
	"pinkchat/backend/pkg/di"
	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/logger"
	"pinkchat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// the logger goes first so every request gets an id
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	tokens := r.tokenValidator()

	wsHandler := ws.NewHandler(r.Container.Hub, tokens, r.Config.Security.AllowedOrigins, r.Config.Security.AllowAnonymous)
	r.Engine.GET("/ws", wsHandler.ServeWs)

	apiGroup := r.Engine.Group("/api")
	apiGroup.Use(r.Container.RateLimiter.Middleware())
	apiGroup.Use(middleware.JWTAuth(tokens, r.Logger, r.Config.Security.AllowAnonymous))
	apiGroup.Use(r.Container.Validator.Middleware())
	{
		api.NewMessageController(r.Container.Store).RegisterRoutes(apiGroup)
		api.NewSubscriptionController(r.Container.Dispatcher).RegisterRoutes(apiGroup)
		api.NewStatusController(r.Container.Store, r.Container.Hub).RegisterRoutes(apiGroup)
	}

	r.setupDocsRoutes()
	r.setupHealthRoutes()
	r.Engine.GET("/metrics", gin.WrapH(r.Container.MetricsHandler))
}

// tokenValidator returns nil when no signing secret is configured so the
// handlers can tell "no auth" apart from "bad token".
func (r *Router) tokenValidator() middleware.TokenValidator {
	if !r.Container.JWTService.Enabled() {
		return nil
	}
	return r.Container.JWTService
}

// corsMiddleware also allows the headers a websocket upgrade needs
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			if _, ok := set[strings.ToLower(origin)]; ok || allowAll {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Vary", "Origin")
			}
		} else if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin, Upgrade, Connection, Cache-Control, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
