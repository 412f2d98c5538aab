// Package domain defines the persistence models for the deal catalog, the
// coupon ledger, and the redemption transaction log. These types are mapped
// with GORM and form the core data layer of the marketplace backend.
package domain

import (
	"time"
)

// CouponStatus is the lifecycle state of a purchased coupon.
//
// Transitions are monotonic: unredeemed → redeemed or unredeemed → expired.
// Nothing ever leaves redeemed or expired.
type CouponStatus string

const (
	CouponUnredeemed CouponStatus = "unredeemed"
	CouponRedeemed   CouponStatus = "redeemed"
	CouponExpired    CouponStatus = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s CouponStatus) Valid() bool {
	switch s {
	case CouponUnredeemed, CouponRedeemed, CouponExpired:
		return true
	}
	return false
}

// Terminal reports whether s can no longer change.
func (s CouponStatus) Terminal() bool {
	return s == CouponRedeemed || s == CouponExpired
}

// CanTransition reports whether from → to is an allowed ledger transition.
func CanTransition(from, to CouponStatus) bool {
	return from == CouponUnredeemed && to.Terminal()
}

// Deal kinds.
const (
	DealKindBrand    = "brand"
	DealKindDiscount = "discount"
)

// Deal is a catalog entry users browse before purchasing a coupon.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Kind: "brand" (creator/brand partnership) or "discount" (store discount).
//   - Title / BrandName / StoreName / Description: display fields.
//   - DiscountValue: display string such as "50% off" or "$20 off".
//   - CouponCode: base code used as prefix for generated coupon codes.
//   - PriceCredits: cost in credits when bought with the credit balance.
//   - ValidDays: coupon validity in days; 0 falls back to the configured TTL.
type Deal struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	Kind          string    `json:"kind"           gorm:"type:varchar(16);not null;index;check:kind IN ('brand','discount')"`
	Title         string    `json:"title"          gorm:"type:varchar(255);not null"`
	BrandName     string    `json:"brand_name"     gorm:"type:varchar(255)"`
	StoreName     string    `json:"store_name"     gorm:"type:varchar(255)"`
	Description   string    `json:"description"    gorm:"type:text"`
	DiscountValue string    `json:"discount_value" gorm:"type:varchar(64);not null"`
	CouponCode    string    `json:"coupon_code"    gorm:"type:varchar(64)"`
	PriceCredits  int64     `json:"price_credits"  gorm:"not null;default:0"`
	ValidDays     int       `json:"valid_days"     gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Deal.
func (Deal) TableName() string { return "deals" }

// CouponRecord is one purchased, redeemable discount code. The deal fields
// are a read-only snapshot taken at purchase time.
//
// Invariant: RedemptionDate is non-nil iff Status == CouponRedeemed.
// Records are never deleted; they are the audit trail of every purchase.
type CouponRecord struct {
	ID             string       `json:"id"                        gorm:"type:char(36);primaryKey"`
	Code           string       `json:"code"                      gorm:"type:varchar(128);not null;uniqueIndex:ux_coupons_code"`
	UserID         string       `json:"user_id"                   gorm:"type:varchar(64);not null;index:idx_coupons_user"`
	Status         CouponStatus `json:"status"                    gorm:"type:varchar(16);not null;index:idx_coupons_status_expiry,priority:1;check:status IN ('unredeemed','redeemed','expired')"`
	DealID         string       `json:"deal_id"                   gorm:"type:char(36);index"`
	DealTitle      string       `json:"deal_title"                gorm:"type:varchar(255);not null"`
	DiscountValue  string       `json:"discount_value"            gorm:"type:varchar(64);not null"`
	BrandName      string       `json:"brand_name"                gorm:"type:varchar(255)"`
	StoreName      string       `json:"store_name"                gorm:"type:varchar(255)"`
	SourceRef      *string      `json:"-"                         gorm:"type:varchar(255);uniqueIndex:ux_coupons_source"`
	PurchaseDate   time.Time    `json:"purchase_date"             gorm:"not null"`
	ExpiryDate     time.Time    `json:"expiry_date"               gorm:"not null;index:idx_coupons_status_expiry,priority:2"`
	RedemptionDate *time.Time   `json:"redemption_date,omitempty"`
	RedeemedBy     *string      `json:"redeemed_by,omitempty"     gorm:"type:varchar(255)"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TableName returns the database table name for CouponRecord.
func (CouponRecord) TableName() string { return "coupons" }

// ExpiredAt reports whether the record's validity window has passed at now.
// A coupon is still usable at exactly ExpiryDate.
func (c *CouponRecord) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiryDate)
}

// TransactionOutcome is the recorded result of a redemption attempt.
type TransactionOutcome string

const (
	OutcomeSuccess         TransactionOutcome = "success"
	OutcomeAlreadyRedeemed TransactionOutcome = "already-redeemed"
	OutcomeExpired         TransactionOutcome = "expired"
	OutcomeInvalid         TransactionOutcome = "invalid"
)

// RedemptionTransaction is an immutable, append-only entry describing one
// redemption attempt as seen by the operator identified by UserID.
type RedemptionTransaction struct {
	ID              string             `json:"id"                      gorm:"type:char(36);primaryKey"`
	UserID          string             `json:"user_id"                 gorm:"type:varchar(64);not null;index:idx_tx_user_time,priority:1"`
	Code            string             `json:"code"                    gorm:"type:varchar(128);not null;index"`
	DealTitle       string             `json:"deal_title"              gorm:"type:varchar(255)"`
	DiscountDisplay string             `json:"discount_display"        gorm:"type:varchar(64)"`
	CustomerName    *string            `json:"customer_name,omitempty" gorm:"type:varchar(255)"`
	Outcome         TransactionOutcome `json:"outcome"                 gorm:"type:varchar(32);not null;check:outcome IN ('success','already-redeemed','expired','invalid')"`
	CreatedAt       time.Time          `json:"timestamp"               gorm:"not null;index:idx_tx_user_time,priority:2"`
}

// TableName returns the database table name for RedemptionTransaction.
func (RedemptionTransaction) TableName() string { return "redemption_transactions" }
