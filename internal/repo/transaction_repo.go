package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// CreateTransaction appends tx to the log. Missing ID and timestamp are filled in.
func CreateTransaction(ctx context.Context, db *gorm.DB, tx *domain.RedemptionTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(tx).Error
}

// ListTransactionsPage returns a page of userID's transactions, most recent
// first. Entries created in the same instant are ordered by id for stable paging.
func ListTransactionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.RedemptionTransaction, error) {
	var out []domain.RedemptionTransaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountTransactions returns the number of log entries recorded for userID.
func CountTransactions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.RedemptionTransaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}
