// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the coupon
// ledger.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - A missing coupon yields ErrNotFound.
//   - A unique violation on code or source reference yields ErrDuplicate.
//   - Other DB errors are propagated unchanged.
//
// Status changes only ever go through CompareAndSwapCouponStatus, which is a
// conditional UPDATE keyed on (code, expected status). Exactly one concurrent
// caller can observe RowsAffected == 1 for a given transition.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCoupon inserts rec. Missing ID and timestamps are filled in.
func CreateCoupon(ctx context.Context, db *gorm.DB, rec *domain.CouponRecord) error {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.PurchaseDate.IsZero() {
		rec.PurchaseDate = now
	}
	if rec.Status == "" {
		rec.Status = domain.CouponUnredeemed
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetCouponByCode fetches the coupon with the exact code.
func GetCouponByCode(ctx context.Context, db *gorm.DB, code string) (*domain.CouponRecord, error) {
	var c domain.CouponRecord
	err := db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCouponBySourceRef fetches the coupon issued for an external purchase
// reference (e.g. a Stripe checkout session id).
func GetCouponBySourceRef(ctx context.Context, db *gorm.DB, ref string) (*domain.CouponRecord, error) {
	var c domain.CouponRecord
	err := db.WithContext(ctx).Where("source_ref = ?", ref).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CompareAndSwapCouponStatus moves the coupon identified by code from expected
// to next, but only if its current status is still expected. It reports true
// when this call performed the transition.
//
// For next == redeemed the redemption date (at) and the optional customer name
// are written in the same statement.
func CompareAndSwapCouponStatus(ctx context.Context, db *gorm.DB, code string, expected, next domain.CouponStatus, at time.Time, customerName *string) (bool, error) {
	if !domain.CanTransition(expected, next) {
		return false, nil
	}
	values := map[string]any{
		"status":     next,
		"updated_at": at,
	}
	if next == domain.CouponRedeemed {
		values["redemption_date"] = at
		values["redeemed_by"] = customerName
	}
	res := db.WithContext(ctx).
		Model(&domain.CouponRecord{}).
		Where("code = ? AND status = ?", code, expected).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpirableCoupons returns up to limit unredeemed coupons whose expiry
// date lies strictly before now, oldest expiry first.
func ListExpirableCoupons(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.CouponRecord, error) {
	var out []domain.CouponRecord
	err := db.WithContext(ctx).
		Where("status = ? AND expiry_date < ?", domain.CouponUnredeemed, now).
		Order("expiry_date asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListCouponsByUser returns a page of coupons purchased by userID, newest first.
func ListCouponsByUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.CouponRecord, error) {
	var out []domain.CouponRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchase_date desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
