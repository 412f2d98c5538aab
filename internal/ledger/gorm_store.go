package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

// GormStore keeps the ledger in a SQL database through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by db. The schema must already be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) FindByCode(ctx context.Context, code string) (*domain.CouponRecord, error) {
	rec, err := repo.GetCouponByCode(ctx, s.db, code)
	if repo.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return rec, nil
}

func (s *GormStore) FindBySourceRef(ctx context.Context, ref string) (*domain.CouponRecord, error) {
	rec, err := repo.GetCouponBySourceRef(ctx, s.db, ref)
	if repo.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find coupon by source: %w", err)
	}
	return rec, nil
}

func (s *GormStore) Issue(ctx context.Context, rec *domain.CouponRecord) error {
	err := repo.CreateCoupon(ctx, s.db, rec)
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("issue coupon: %w", err)
	}
	return nil
}

// CompareAndSwapStatus runs the conditional UPDATE and, when it wins, the
// transaction insert inside one database transaction.
func (s *GormStore) CompareAndSwapStatus(ctx context.Context, sw Swap) (bool, error) {
	var won bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.CompareAndSwapCouponStatus(ctx, tx, sw.Code, sw.Expected, sw.Next, sw.At, sw.CustomerName)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if sw.Record != nil {
			if err := repo.CreateTransaction(ctx, tx, sw.Record); err != nil {
				return err
			}
		}
		won = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("swap coupon status: %w", err)
	}
	return won, nil
}

func (s *GormStore) AppendTransaction(ctx context.Context, tx *domain.RedemptionTransaction) error {
	if err := repo.CreateTransaction(ctx, s.db, tx); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (s *GormStore) ListTransactions(ctx context.Context, userID string, offset, limit int) ([]domain.RedemptionTransaction, error) {
	return repo.ListTransactionsPage(ctx, s.db, userID, offset, limit)
}

func (s *GormStore) CountTransactions(ctx context.Context, userID string) (int64, error) {
	return repo.CountTransactions(ctx, s.db, userID)
}

func (s *GormStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.CouponRecord, error) {
	return repo.ListExpirableCoupons(ctx, s.db, now, limit)
}

var _ StatsStore = (*GormStore)(nil)

func (s *GormStore) TransactionsStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.TransactionsStats(ctx, s.db, userID)
}
