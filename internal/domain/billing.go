package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer links an application user to a Stripe customer.
type Customer struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID           string    `json:"user_id"            gorm:"type:varchar(64);not null;index"`
	StripeCustomerID string    `json:"stripe_customer_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Email            string    `json:"email"              gorm:"type:varchar(255)"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Subscription mirrors the state of a Stripe subscription.
//
// LastEventAt is the creation time of the newest Stripe event applied to the
// row; older events arriving late are ignored.
type Subscription struct {
	ID                   string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	UserID               string     `json:"user_id"                gorm:"type:varchar(64);index"`
	StripeSubscriptionID string     `json:"stripe_subscription_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	StripeCustomerID     string     `json:"stripe_customer_id"     gorm:"type:varchar(255);index"`
	Status               string     `json:"status"                 gorm:"type:varchar(32);not null"`
	PriceID              string     `json:"price_id"               gorm:"type:varchar(255)"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	LastEventAt          time.Time  `json:"-"                      gorm:"not null"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// Payment kinds.
const (
	PaymentKindCheckout = "checkout"
	PaymentKindInvoice  = "invoice"
)

// Payment records money received (or failed) for a checkout session or an
// invoice. StripeObjectID is the session/invoice id and is unique.
type Payment struct {
	ID             string          `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID         string          `json:"user_id"          gorm:"type:varchar(64);index"`
	StripeObjectID string          `json:"stripe_object_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Kind           string          `json:"kind"             gorm:"type:varchar(16);not null"`
	Amount         decimal.Decimal `json:"amount"           gorm:"type:decimal(20,2);not null"`
	Currency       string          `json:"currency"         gorm:"type:varchar(8)"`
	Status         string          `json:"status"           gorm:"type:varchar(32);not null"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// CreditBalance is the spendable credit count of a user. It is only ever
// changed with an atomic in-database increment.
type CreditBalance struct {
	UserID    string    `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	Balance   int64     `json:"balance" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for CreditBalance.
func (CreditBalance) TableName() string { return "credit_balances" }

// ProcessedEvent marks a Stripe event id as applied. Inserting the row is the
// first statement of every reconciliation transaction.
type ProcessedEvent struct {
	ID          string    `gorm:"type:varchar(255);primaryKey"`
	Type        string    `gorm:"type:varchar(128);not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for ProcessedEvent.
func (ProcessedEvent) TableName() string { return "stripe_events" }
