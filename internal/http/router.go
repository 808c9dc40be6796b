// Package httpapi assembles the agentd HTTP surface: middleware chain,
// health and metrics endpoints, and the signed webhook route.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/config"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/http/handlers"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/http/middleware"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/repo"
)

// NewRouter builds the Gin engine for agentd.
//
// Middleware order is deliberate: tracing first so every span covers the full
// request, then correlation ID, logging, recovery, body limiting, metrics,
// rate limiting and CORS before any route handler runs.
func NewRouter(cfg *config.Config, store *repo.Store) *gin.Engine {
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware("agentd"))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	r.Use(middleware.Metrics())

	if cfg.RateRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, 10*time.Minute)
		r.Use(rl.Middleware())
	}

	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Api-Key", "X-Signature", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	health := &handlers.HealthHandler{DB: store.DB, Started: time.Now()}
	r.GET("/healthz", health.Handle)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wh := &handlers.WebhookHandler{
		APIKey:     cfg.Webhook.APIKey,
		Secret:     cfg.Webhook.Secret,
		Sync:       cfg.AgentMode == config.AgentModeSync,
		Store:      store,
		AsyncDelay: 500 * time.Millisecond,
	}
	r.POST("/webhook", wh.Handle)

	return r
}
