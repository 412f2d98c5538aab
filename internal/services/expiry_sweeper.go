// Package services – ExpirySweeper
//
// ExpirySweeper periodically moves overdue unredeemed coupons to expired. It
// uses the same compare-and-swap entry point as redemption, so a coupon
// redeemed between listing and swapping is simply skipped. With a Redis lock
// configured only one replica sweeps per interval.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/ledger"
	"github.com/tbourn/go-deals-backend/internal/observability"
)

// Locker obtains distributed locks. *redislock.Client implements it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// ExpirySweeper expires overdue coupons in batches.
type ExpirySweeper struct {
	Store ledger.Store
	// Locker is optional; nil sweeps without coordination.
	Locker   Locker
	LockKey  string
	LockTTL  time.Duration
	Interval time.Duration
	Batch    int
	Now      func() time.Time
}

// NewExpirySweeper constructs a sweeper. locker may be nil.
func NewExpirySweeper(store ledger.Store, locker Locker, interval time.Duration, batch int) *ExpirySweeper {
	if batch <= 0 {
		batch = 500
	}
	return &ExpirySweeper{
		Store:    store,
		Locker:   locker,
		LockKey:  "lock:coupons:expiry-sweep",
		LockTTL:  time.Minute,
		Interval: interval,
		Batch:    batch,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// SweepOnce expires every overdue coupon visible now and returns how many it
// transitioned. When another replica holds the lock it returns (0, nil).
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("services/ExpirySweeper").Start(ctx, "SweepOnce")
	defer span.End()
	lg := loggerFrom(ctx)

	if s.Locker != nil {
		lock, err := s.Locker.Obtain(ctx, s.LockKey, s.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			lg.Debug().Str("lock", s.LockKey).Msg("expiry sweep skipped; lock held elsewhere")
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer func() {
			if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil && !errors.Is(rerr, redislock.ErrLockNotHeld) {
				lg.Warn().Err(rerr).Msg("release expiry sweep lock")
			}
		}()
	}

	now := s.Now()
	expired := 0
	for {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		batch, err := s.Store.ListExpirable(ctx, now, s.Batch)
		if err != nil {
			return expired, err
		}
		won := 0
		for _, rec := range batch {
			ok, err := s.Store.CompareAndSwapStatus(ctx, ledger.Swap{
				Code:     rec.Code,
				Expected: domain.CouponUnredeemed,
				Next:     domain.CouponExpired,
				At:       now,
			})
			if err != nil {
				return expired, err
			}
			if ok {
				won++
			}
		}
		expired += won
		observability.CouponsExpired.Add(float64(won))
		// A short batch is the tail; a batch with no wins would repeat forever.
		if len(batch) < s.Batch || won == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("coupons.expired", expired))
	if expired > 0 {
		lg.Info().Int("expired", expired).Msg("expiry sweep")
	}
	return expired, nil
}

// Run sweeps immediately and then every Interval until ctx is cancelled.
// A non-positive Interval disables the sweeper.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return nil
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			loggerFrom(ctx).Error().Err(err).Msg("expiry sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
