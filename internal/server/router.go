package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/handler"
	"github.com/altavia-air/altavia-api/internal/middleware"
	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/internal/ratelimit"
	"github.com/altavia-air/altavia-api/internal/service"
	"github.com/altavia-air/altavia-api/internal/token"
	"github.com/altavia-air/altavia-api/pkg/config"
	"github.com/altavia-air/altavia-api/pkg/logger"
	corsmiddleware "github.com/altavia-air/altavia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/altavia-air/altavia-api/pkg/middleware/requestid"
)

// Deps carries everything the router needs. DB and Redis may be nil; the
// health endpoint reports what is actually wired.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Codec    *token.Codec
	Limiter  *ratelimit.Limiter
	Auditor  *audit.Logger
	Metrics  *service.MetricsService
	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler
	DB       *sqlx.DB
	Redis    *redis.Client
}

// NewRouter assembles the middleware chain and routes. Security headers are
// applied ahead of anything that can abort, so every response carries them,
// including 401s and 429s.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.Logger))
	r.Use(corsmiddleware.New(d.Config.CORS.AllowedOrigins))
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.RateLimit(d.Limiter, ratelimit.TierPublic, d.Auditor, d.Metrics))
	r.Use(middleware.Authenticate(d.Codec, d.Auditor, d.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", d.readiness)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group(d.Config.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", middleware.RateLimit(d.Limiter, ratelimit.TierAuth, d.Auditor, d.Metrics), d.Auth.Login)
	auth.POST("/refresh", middleware.RateLimit(d.Limiter, ratelimit.TierAuth, d.Auditor, d.Metrics), d.Auth.Refresh)
	auth.POST("/logout", middleware.RequireAuth(d.Auditor), d.Auth.Logout)
	auth.POST("/logout-all", middleware.RequireAuth(d.Auditor), d.Auth.LogoutEverywhere)

	bookings := api.Group("/bookings", middleware.RequireAuth(d.Auditor))
	bookings.GET("/mine", middleware.RequireScope(models.ScopeBookingsRead, d.Auditor), d.Bookings.ListMine)
	bookings.GET("/:id", middleware.RequireScope(models.ScopeBookingsRead, d.Auditor), d.Bookings.Get)
	bookings.POST("/:id/cancel",
		middleware.RateLimit(d.Limiter, ratelimit.TierBookingWrite, d.Auditor, d.Metrics),
		middleware.RequireScope(models.ScopeBookingsWrite, d.Auditor),
		d.Bookings.Cancel)
	bookings.POST("/:id/payment-intent",
		middleware.RateLimit(d.Limiter, ratelimit.TierPayment, d.Auditor, d.Metrics),
		middleware.RequireScope(models.ScopePayments, d.Auditor),
		d.Bookings.CreatePaymentIntent)

	return r
}

func (d Deps) readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if d.DB != nil {
		if err := d.DB.PingContext(ctx); err != nil {
			checks["database"] = "down"
			healthy = false
		} else {
			checks["database"] = "up"
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
