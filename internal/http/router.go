// Package httpapi assembles the Gin engine: the global middleware chain,
// operational endpoints (/health, /ready, /metrics, /swagger) and the
// versioned deals API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/docs"
	"github.com/tbourn/go-deals-backend/internal/config"
	"github.com/tbourn/go-deals-backend/internal/http/handlers"
	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

const (
	maxBodyBytes = 1 << 20
	readyTimeout = 2 * time.Second
)

// Services bundles the application services the HTTP layer depends on.
type Services struct {
	Redemptions handlers.RedemptionService
	Coupons     handlers.CouponService
	Deals       handlers.DealService
	Billing     handlers.BillingService
}

// idempotencyStore backs the idempotency middleware with the idempotency
// table.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup returns the live response stored for the triple, or nil.
func (s idempotencyStore) Lookup(ctx context.Context, operatorID, route, key string, now time.Time) (*middleware.StoredResponse, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, operatorID, route, key, now)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &middleware.StoredResponse{Status: rec.Status, Body: []byte(rec.Body), Fingerprint: rec.RequestHash}, nil
}

// Save stores resp for the triple. When two requests with the same key race,
// the first stored response wins and the loser is not an error.
func (s idempotencyStore) Save(ctx context.Context, operatorID, route, key string, resp middleware.StoredResponse) error {
	_, err := repo.CreateIdempotency(ctx, s.db, operatorID, route, key, resp.Fingerprint, resp.Status, resp.Body, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// RegisterRoutes installs the middleware chain and every route on r.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	idem := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}

	r.Use(baseMiddleware(cfg, idem)...)

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	mountOps(r, db, cfg)

	h := handlers.New(svc.Redemptions, svc.Coupons, svc.Deals, svc.Billing, cfg.StripeWebhookSecret)
	mountAPI(groupWithPrefix(r, cfg.APIBasePath), h, middleware.IdempotentReplay(idem.Save), cfg.DevIssue)
}

// baseMiddleware is the global chain, outermost first. Tracing and the
// request id precede the logger so every line carries both. The idempotency
// lookup runs before the rate limiter so replays are not throttled.
func baseMiddleware(cfg config.Config, idem idempotencyStore) []gin.HandlerFunc {
	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOperator()).
		Exempt(path.Join(cfg.APIBasePath, "/webhooks/stripe"), "/health", "/ready", "/metrics")

	return []gin.HandlerFunc{
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key"}}),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		middleware.Metrics(),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.Lookup),
		limiter.Handler(),
		corsMiddleware(cfg.CORS.AllowedOrigins),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS:          cfg.Security.EnableHSTS,
			HSTSMaxAge:          cfg.Security.HSTSMaxAge,
			DefaultCacheControl: "no-store",
			CacheRules: []middleware.CacheRule{
				{Prefix: path.Join(cfg.APIBasePath, "/deals"), CacheControl: "public, max-age=60"},
				{Prefix: path.Join(cfg.APIBasePath, "/transactions"), CacheControl: "private, no-cache"},
				{Prefix: "/swagger", CacheControl: ""},
			},
		}),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
	}
}

// corsMiddleware allows any origin when origins is empty. Credentials are
// never allowed, so scanner front-ends authenticate with X-User-ID only.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-User-ID", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// mountOps registers the endpoints used by orchestrators and operators.
// /health is liveness only; /ready also requires the database to answer.
func mountOps(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := pingDB(ctx, db); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// mountAPI registers the versioned API. replay is attached to the writes a
// client may safely retry with an Idempotency-Key. Coupons are otherwise
// only created by paid checkouts, so POST /coupons exists only when devIssue
// is set.
func mountAPI(api *gin.RouterGroup, h *handlers.Handlers, replay gin.HandlerFunc, devIssue bool) {
	api.POST("/redemptions/validate", h.ValidateCoupon)
	api.POST("/redemptions", replay, h.RedeemCoupon)
	api.GET("/transactions", h.ListTransactions)

	api.GET("/coupons/:code", h.GetCoupon)
	if devIssue {
		api.POST("/coupons", replay, h.IssueCoupon)
	}

	api.GET("/deals", h.ListDeals)
	api.GET("/deals/search", h.SearchDeals)
	api.GET("/deals/:id", h.GetDeal)

	api.GET("/credits", h.GetCredits)
	api.POST("/webhooks/stripe", h.StripeWebhook)
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// limitBody caps request bodies at maxBytes; reading past the cap fails.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
