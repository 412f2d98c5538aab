package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// TransactionsStats returns how many log entries userID has and when the
// newest was written; latest is nil when there are none. The log only grows,
// so the pair changes whenever any page of GET /transactions could.
func TransactionsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.RedemptionTransaction{}).Where("user_id = ?", userID)
	return countAndNewest(q, "created_at")
}

// DealsStats returns the catalog size and the newest updated_at.
func DealsStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	return countAndNewest(db.WithContext(ctx).Model(&domain.Deal{}), "updated_at")
}

// countAndNewest counts q and reads the largest value of the timestamp
// column. The newest row is selected by ORDER BY rather than MAX() because
// SQLite returns MAX() of a timestamp as TEXT.
func countAndNewest(q *gorm.DB, column string) (int64, *time.Time, error) {
	var n int64
	if err := q.Session(&gorm.Session{}).Count(&n).Error; err != nil || n == 0 {
		return 0, nil, err
	}
	var ts []time.Time
	if err := q.Session(&gorm.Session{}).Order(column+" DESC").Limit(1).Pluck(column, &ts).Error; err != nil {
		return 0, nil, err
	}
	if len(ts) == 0 {
		return n, nil, nil
	}
	return n, &ts[0], nil
}
