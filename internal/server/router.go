package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/codesnap/codesnap/config"
	"github.com/codesnap/codesnap/handlers"
	"github.com/codesnap/codesnap/internal/auth"
	"github.com/codesnap/codesnap/internal/metrics"
	"github.com/codesnap/codesnap/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// limiterTTL is how long an idle client's bucket is remembered
const limiterTTL = 10 * time.Minute

// Deps are the collaborators the router wires into handlers
type Deps struct {
	Config  *config.Config
	Pastes  *services.PasteService
	Auth    *auth.Authenticator
	Store   handlers.Pinger
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRouter creates and configures the gin engine
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pasteHandler := handlers.NewPasteHandler(deps.Pastes, logger)
	adminHandler := handlers.NewAdminHandler(deps.Auth, deps.Metrics, logger)
	metaHandler := handlers.NewMetaHandler()
	systemHandler := handlers.NewSystemHandler(deps.Store, cfg.StorageType, cfg.Version)

	router := gin.New()

	// Recovery sits inside canonicalErrors so a panic still yields the
	// canonical JSON body.
	router.Use(requestID())
	router.Use(requestLogger(logger, cfg.TrustProxy))
	router.Use(deps.Metrics.Middleware())
	router.Use(corsMiddleware(cfg))
	router.Use(canonicalErrors(logger))
	router.Use(jsonRecovery(logger))
	router.Use(bodyLimit(cfg.MaxContentBytes))

	adminLimit := NewRateLimiter(cfg.AdminRatePerMinute, limiterTTL).Middleware(cfg.TrustProxy)

	api := router.Group("/api")
	{
		api.POST("/pastes", pasteHandler.Create)
		api.GET("/pastes", pasteHandler.List)
		api.GET("/pastes/:pasteId", pasteHandler.Get)
		api.GET("/pastes/:pasteId/related", pasteHandler.Related)
		api.GET("/pastes/:pasteId/download", pasteHandler.Download)
		api.PUT("/pastes/:pasteId", adminLimit, pasteHandler.Update)
		api.DELETE("/pastes/:pasteId", adminLimit, pasteHandler.Delete)

		admin := api.Group("/admin", adminLimit)
		admin.POST("/verify", adminHandler.Verify)
		admin.POST("/logout", adminHandler.Logout)

		api.GET("/languages", metaHandler.Languages)
		api.GET("/expiration-options", metaHandler.ExpirationOptions)
	}

	router.GET("/health", systemHandler.Health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	})

	return router
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if cfg.AllowAllOrigins() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	return cors.New(corsCfg)
}
