package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/handler"
	"github.com/stemsi/simulado/internal/middleware"
	"github.com/stemsi/simulado/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Simulado *handler.SimuladoHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router (rate-limit sweeps).
func SetupRouter(
	ctx context.Context,
	tokens middleware.TokenValidator,
	sessions middleware.SimuladoLookup,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID + request-scoped logger on every request.
	router.Use(response.RequestIDMiddleware(log))

	router.GET("/health", handlers.System.Health)

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)

	// ─── 1. Auth Group (proxied to the remote API) ─────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.Brotli(), middleware.NoStore(), limiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireStudentJWT(tokens), handlers.Auth.Me)
	}

	// ─── 2. Simulado Group (JWT) ───────────────────────────────────────
	simulados := router.Group("/api/v1/simulados/:id")
	simulados.Use(
		middleware.Brotli(),
		middleware.NoStore(),
		middleware.RequireStudentJWT(tokens),
		limiter.Middleware(),
		middleware.ParseSimuladoID(),
	)
	{
		simulados.GET("", handlers.Simulado.Open)
		simulados.DELETE("", handlers.Simulado.Abandon)

		// Actions on a simulado this runner already opened.
		open := simulados.Group("", middleware.RequireOpenSimulado(sessions))
		open.POST("/retry", handlers.Simulado.Retry)
		open.POST("/answers", handlers.Simulado.SelectAnswer)
		open.POST("/navigation", handlers.Simulado.Navigate)
		open.POST("/finalize", handlers.Simulado.Finalize)
	}

	// ─── 3. System Group (JWT) ─────────────────────────────────────────
	system := router.Group("/api/v1/system")
	system.Use(middleware.RequireStudentJWT(tokens))
	{
		system.GET("/metrics", handlers.System.SystemMetricsSSE)
	}

	// ─── 4. WebSocket Group (WS Auth) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(tokens), middleware.ParseSimuladoID())
	{
		ws.GET("/simulados/:id/stream", handlers.WS.SimuladoStream)
	}

	return router
}
