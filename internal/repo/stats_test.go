package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestTransactionsStats(t *testing.T) {
	db := newTestDB(t, &domain.RedemptionTransaction{})
	ctx := context.Background()

	if n, latest, err := TransactionsStats(ctx, db, "store-42"); err != nil || n != 0 || latest != nil {
		t.Fatalf("empty log = (%d, %v, %v)", n, latest, err)
	}

	at := func(day int) time.Time { return time.Date(2026, 2, day, 10, 0, 0, 0, time.UTC) }
	for i, tx := range []domain.RedemptionTransaction{
		{UserID: "store-42", Code: "A", Outcome: domain.OutcomeSuccess, CreatedAt: at(3)},
		{UserID: "store-42", Code: "B", Outcome: domain.OutcomeExpired, CreatedAt: at(9)},
		{UserID: "store-42", Code: "C", Outcome: domain.OutcomeAlreadyRedeemed, CreatedAt: at(5)},
		{UserID: "store-7", Code: "D", Outcome: domain.OutcomeSuccess, CreatedAt: at(20)},
	} {
		tx.ID = fmt.Sprintf("tx-%d", i)
		if err := CreateTransaction(ctx, db, &tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, latest, err := TransactionsStats(ctx, db, "store-42")
	if err != nil || n != 3 || latest == nil || !latest.Equal(at(9)) {
		t.Fatalf("stats = (%d, %v, %v), want (3, %v)", n, latest, err, at(9))
	}
}

func TestTransactionsStats_Errors(t *testing.T) {
	ctx := context.Background()

	if _, _, err := TransactionsStats(ctx, newTestDB(t), "store-42"); err == nil {
		t.Fatal("missing table must fail the count")
	}

	db := newTestDB(t, &domain.RedemptionTransaction{})
	if err := CreateTransaction(ctx, db, &domain.RedemptionTransaction{UserID: "store-42", Code: "X", Outcome: domain.OutcomeSuccess}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Exec(`ALTER TABLE redemption_transactions RENAME COLUMN created_at TO logged_at`).Error; err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, _, err := TransactionsStats(ctx, db, "store-42"); err == nil {
		t.Fatal("missing timestamp column must fail the newest lookup")
	}
}

func TestDealsStats(t *testing.T) {
	db := newTestDB(t, &domain.Deal{})
	ctx := context.Background()

	if n, latest, err := DealsStats(ctx, db); err != nil || n != 0 || latest != nil {
		t.Fatalf("empty catalog = (%d, %v, %v)", n, latest, err)
	}

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.AddDate(0, 1, 0)
	for _, d := range []*domain.Deal{
		{ID: "d1", Kind: domain.DealKindDiscount, Title: "AMC tickets", DiscountValue: "$5 off", CreatedAt: newer, UpdatedAt: newer},
		{ID: "d2", Kind: domain.DealKindBrand, Title: "Nike run", DiscountValue: "50% off", CreatedAt: older, UpdatedAt: older},
	} {
		if err := db.Create(d).Error; err != nil {
			t.Fatalf("seed %s: %v", d.ID, err)
		}
	}
	n, latest, err := DealsStats(ctx, db)
	if err != nil || n != 2 || latest == nil || !latest.Equal(newer) {
		t.Fatalf("stats = (%d, %v, %v)", n, latest, err)
	}
}
