// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Stripe
// reconciliation: processed-event markers, customers, subscriptions,
// payments and credit balances.
//
// These helpers are meant to run inside a single db.Transaction opened by the
// billing service, so that the processed-event marker and the effects of an
// event commit or roll back together.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// MarkEventProcessed records eventID as applied. It returns false when the id
// was already present, which means the event is a redelivery.
func MarkEventProcessed(ctx context.Context, db *gorm.DB, eventID, eventType string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ProcessedEvent{ID: eventID, Type: eventType, ProcessedAt: at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IsEventProcessed reports whether eventID has already been applied.
func IsEventProcessed(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.ProcessedEvent{}).Where("id = ?", eventID).Count(&n).Error
	return n > 0, err
}

// UpsertCustomer creates the customer link or refreshes user id and email
// when the Stripe customer is already known.
func UpsertCustomer(ctx context.Context, db *gorm.DB, c *domain.Customer) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "email", "updated_at"}),
		}).
		Create(c).Error
}

// FindCustomerByStripeID returns the customer link for a Stripe customer id.
func FindCustomerByStripeID(ctx context.Context, db *gorm.DB, stripeID string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("stripe_customer_id = ?", stripeID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertSubscription writes s keyed by its Stripe subscription id. An event
// older than the one already applied (LastEventAt) is skipped and reported
// as applied == false.
func UpsertSubscription(ctx context.Context, db *gorm.DB, s *domain.Subscription) (applied bool, err error) {
	now := time.Now().UTC()
	var cur domain.Subscription
	err = db.WithContext(ctx).Where("stripe_subscription_id = ?", s.StripeSubscriptionID).First(&cur).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.CreatedAt, s.UpdatedAt = now, now
		if err := db.WithContext(ctx).Create(s).Error; err != nil {
			return false, err
		}
		return true, nil
	case err != nil:
		return false, err
	}

	if cur.LastEventAt.After(s.LastEventAt) {
		return false, nil
	}
	s.ID, s.CreatedAt, s.UpdatedAt = cur.ID, cur.CreatedAt, now
	if s.UserID == "" {
		s.UserID = cur.UserID
	}
	err = db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", cur.ID).
		Updates(map[string]any{
			"user_id":              s.UserID,
			"stripe_customer_id":   s.StripeCustomerID,
			"status":               s.Status,
			"price_id":             s.PriceID,
			"current_period_end":   s.CurrentPeriodEnd,
			"cancel_at_period_end": s.CancelAtPeriodEnd,
			"last_event_at":        s.LastEventAt,
			"updated_at":           now,
		}).Error
	return err == nil, err
}

// GetSubscription returns the subscription with the given Stripe id.
func GetSubscription(ctx context.Context, db *gorm.DB, stripeID string) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordPayment stores a payment keyed by its Stripe object id. A second call
// for the same object updates status and amount (failed invoice later paid).
func RecordPayment(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_object_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "amount", "currency"}),
		}).
		Create(p).Error
}

// GetPayment returns the payment for a Stripe session/invoice id.
func GetPayment(ctx context.Context, db *gorm.DB, stripeObjectID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("stripe_object_id = ?", stripeObjectID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// IncrementCredits atomically adds delta to userID's balance, creating the
// row on first use. The addition happens in the database, never as a
// read-modify-write in Go.
func IncrementCredits(ctx context.Context, db *gorm.DB, userID string, delta int64) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("credit_balances.balance + excluded.balance"),
				"updated_at": now,
			}),
		}).
		Create(&domain.CreditBalance{UserID: userID, Balance: delta, UpdatedAt: now}).Error
}

// GetCredits returns userID's balance; users without a row have 0 credits.
func GetCredits(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var cb domain.CreditBalance
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&cb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cb.Balance, nil
}
