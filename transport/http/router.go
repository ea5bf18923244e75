package http

import (
	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/service"
)

// DefaultCookieName is used when RouterConfig leaves the name empty
const DefaultCookieName = "gw_session"

// RouterConfig carries the transport-level settings
type RouterConfig struct {
	CookieName     string
	CookieSecure   bool
	CSRFExempt     bool
	AllowedOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cfg RouterConfig) *gin.Engine {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}

	router := gin.Default()

	if !cfg.CSRFExempt {
		router.Use(OriginCheck(cfg.AllowedOrigins))
	}

	// Create handlers
	handlers := NewAuthHandlers(authService, cfg.CookieName, cfg.CookieSecure)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.GET("/verify", handlers.Verify)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(SessionMiddleware(authService, cfg.CookieName))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
