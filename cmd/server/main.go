// Command server runs the coupon redemption API, the expiry sweeper and the
// idempotency purge loop until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/config"
	httpapi "github.com/tbourn/go-deals-backend/internal/http"
	"github.com/tbourn/go-deals-backend/internal/ledger"
	"github.com/tbourn/go-deals-backend/internal/observability"
	"github.com/tbourn/go-deals-backend/internal/repo"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version string

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.Version(version)
	lg := sysutil.SetupLogger(os.Stderr, sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: ver,
	})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = lg.WithContext(ctx)

	if err := run(ctx, cfg, ver); err != nil {
		lg.Fatal().Err(err).Msg("server exited")
	}
	lg.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.Config, ver string) error {
	lg := zerolog.Ctx(ctx)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	var store ledger.Store
	switch cfg.LedgerBackend {
	case "memory":
		store = ledger.NewMemoryStore()
	default:
		store = ledger.NewGormStore(db)
	}

	dealSvc := services.NewDealService(db)
	if cfg.DealsSeedPath != "" {
		n, err := repo.SeedDeals(ctx, db, cfg.DealsSeedPath)
		if err != nil {
			return err
		}
		lg.Info().Int("deals", n).Str("path", cfg.DealsSeedPath).Msg("deal catalog seeded")
	}
	n, err := dealSvc.Reload(ctx)
	if err != nil {
		return err
	}
	lg.Info().Int("deals", n).Msg("search index built")

	couponSvc := services.NewCouponService(store, dealSvc, cfg.CouponTTL)
	svc := httpapi.Services{
		Redemptions: services.NewRedemptionService(store, cfg.RecordNotFound),
		Coupons:     couponSvc,
		Deals:       dealSvc,
		Billing:     services.NewBillingService(db, couponSvc),
	}

	var locker services.Locker
	if rdb := newRedis(ctx, cfg.Redis); rdb != nil {
		defer rdb.Close()
		locker = redislock.New(rdb)
	}
	sweeper := services.NewExpirySweeper(store, locker, cfg.SweepInterval, cfg.SweepBatch)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info().Str("addr", srv.Addr).Str("version", ver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return purgeIdempotency(gctx, db) })

	return g.Wait()
}

// newRedis connects to Redis when configured. An unreachable Redis is logged
// and the sweeper runs without a lock.
func newRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	lg := zerolog.Ctx(ctx)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		lg.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable; sweeper runs unlocked")
		_ = rdb.Close()
		return nil
	}
	lg.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return rdb
}

// purgeIdempotency deletes expired idempotency records every purgeInterval.
func purgeIdempotency(ctx context.Context, db *gorm.DB) error {
	lg := zerolog.Ctx(ctx)
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
		if err != nil {
			lg.Warn().Err(err).Msg("purge idempotency records")
			continue
		}
		if n > 0 {
			lg.Debug().Int64("purged", n).Msg("idempotency records purged")
		}
	}
}
