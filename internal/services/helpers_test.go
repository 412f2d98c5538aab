package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/ledger"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

func newServicesDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Shared-cache SQLite reports table locks instead of waiting; one
	// connection makes concurrent callers queue.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fixedClock returns a Now func pinned to t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func seedRecord(t *testing.T, s ledger.Store, code string, status domain.CouponStatus, expiry time.Time, redeemedAt *time.Time) *domain.CouponRecord {
	t.Helper()
	rec := &domain.CouponRecord{
		Code:           code,
		UserID:         "buyer-1",
		Status:         status,
		DealID:         "deal-" + strings.ToLower(code),
		DealTitle:      "Deal " + code,
		DiscountValue:  "50% off",
		BrandName:      "Brand",
		ExpiryDate:     expiry,
		RedemptionDate: redeemedAt,
	}
	if err := s.Issue(context.Background(), rec); err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
	return rec
}

// flakyStore wraps a Store and fails selected operations.
type flakyStore struct {
	ledger.Store
	mu        sync.Mutex
	findErr   error
	swapErr   error
	findCalls int
}

var errStoreDown = errors.New("connection refused")

func (f *flakyStore) FindByCode(ctx context.Context, code string) (*domain.CouponRecord, error) {
	f.mu.Lock()
	f.findCalls++
	err := f.findErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.FindByCode(ctx, code)
}

func (f *flakyStore) CompareAndSwapStatus(ctx context.Context, s ledger.Swap) (bool, error) {
	if f.swapErr != nil {
		return false, f.swapErr
	}
	return f.Store.CompareAndSwapStatus(ctx, s)
}
