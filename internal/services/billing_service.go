// Package services – BillingService
//
// BillingService applies verified Stripe events to local state: customers,
// subscriptions, payments, credit balances, and (for deal checkouts) coupon
// issuance into the ledger.
//
// Delivery is at-least-once and unordered. Each event id is inserted into
// stripe_events inside the same transaction as its effects; a conflicting
// insert means the event was already applied and nothing else is written.
// Credit balances change only through an in-database increment. Subscription
// rows ignore events older than the last one applied.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/observability"
	"github.com/tbourn/go-deals-backend/internal/repo"
)

// ApplyResult reports what Apply did with an event.
type ApplyResult string

const (
	ResultApplied   ApplyResult = "applied"
	ResultDuplicate ApplyResult = "duplicate"
	ResultIgnored   ApplyResult = "ignored"
)

// CouponIssuer creates ledger records for deal purchases. *CouponService implements it.
type CouponIssuer interface {
	Issue(ctx context.Context, req IssueRequest) (*domain.CouponRecord, bool, error)
}

// BillingService reconciles Stripe events.
type BillingService struct {
	DB      *gorm.DB
	Coupons CouponIssuer
	Now     func() time.Time
}

// NewBillingService constructs a BillingService.
func NewBillingService(db *gorm.DB, coupons CouponIssuer) *BillingService {
	return &BillingService{
		DB:      db,
		Coupons: coupons,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// IsPermanent reports whether err will fail again on redelivery, so the
// webhook should be acknowledged rather than retried. ErrUnknownCustomer is
// transient: the checkout that links the customer may simply arrive later.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMissingMetadata) ||
		errors.Is(err, ErrDealNotFound) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrCodeTaken)
}

// Apply processes ev exactly once per event id.
func (s *BillingService) Apply(ctx context.Context, ev BillingEvent) (res ApplyResult, err error) {
	meta := ev.Meta()
	ctx, span := otel.Tracer("services/BillingService").Start(ctx, "Apply",
		trace.WithAttributes(
			attribute.String("stripe.event_id", meta.ID),
			attribute.String("stripe.event_type", meta.Type),
		),
	)
	defer span.End()
	defer func() {
		result := string(res)
		if err != nil {
			result = observability.WebhookFailed
			if IsPermanent(err) {
				result = observability.WebhookRejected
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		observability.WebhookEvents.WithLabelValues(meta.Type, result).Inc()
		loggerFrom(ctx).Info().Str("event_id", meta.ID).Str("type", meta.Type).Str("result", result).Err(err).Msg("stripe event")
	}()

	seen, err := repo.IsEventProcessed(ctx, s.DB, meta.ID)
	if err != nil {
		return "", err
	}
	if seen {
		return ResultDuplicate, nil
	}

	// Deal coupons are issued before the transaction: the ledger may live
	// outside this database. Issue is idempotent on the session id, so a
	// retry after a failed transaction finds the same coupon.
	if cc, ok := ev.(CheckoutCompleted); ok && cc.PurchaseType == PurchaseDeal {
		if err := s.issueDealCoupon(ctx, cc); err != nil {
			return "", err
		}
	}

	res = ResultApplied
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, err := repo.MarkEventProcessed(ctx, tx, meta.ID, meta.Type, s.Now())
		if err != nil {
			return err
		}
		if !first {
			res = ResultDuplicate
			return nil
		}
		applied, err := s.dispatch(ctx, tx, ev)
		if err != nil {
			return err
		}
		if !applied {
			res = ResultIgnored
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return res, nil
}

// Credits returns userID's credit balance.
func (s *BillingService) Credits(ctx context.Context, userID string) (int64, error) {
	return repo.GetCredits(ctx, s.DB, userID)
}

// dispatch applies the effects of one variant inside tx. It reports false
// for events that carry nothing to apply.
func (s *BillingService) dispatch(ctx context.Context, tx *gorm.DB, ev BillingEvent) (bool, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return true, s.applyCheckout(ctx, tx, e)
	case SubscriptionChanged:
		return s.applySubscription(ctx, tx, e)
	case SubscriptionDeleted:
		return s.applySubscription(ctx, tx, SubscriptionChanged{
			EventMeta:      e.EventMeta,
			SubscriptionID: e.SubscriptionID,
			CustomerID:     e.CustomerID,
			UserID:         e.UserID,
			Status:         "canceled",
		})
	case InvoicePaid:
		return true, s.applyInvoice(ctx, tx, e.InvoiceEvent, "paid")
	case InvoicePaymentFailed:
		return true, s.applyInvoice(ctx, tx, e.InvoiceEvent, "failed")
	case Ignored:
		return false, nil
	}
	return false, fmt.Errorf("unhandled billing event %T", ev)
}

func (s *BillingService) issueDealCoupon(ctx context.Context, e CheckoutCompleted) error {
	if e.UserID == "" || e.DealID == "" {
		return fmt.Errorf("%w: deal checkout %s needs user_id and deal_id", ErrMissingMetadata, e.SessionID)
	}
	_, _, err := s.Coupons.Issue(ctx, IssueRequest{
		UserID:    e.UserID,
		DealID:    e.DealID,
		Code:      e.CouponCode,
		SourceRef: e.SessionID,
	})
	return err
}

func (s *BillingService) applyCheckout(ctx context.Context, tx *gorm.DB, e CheckoutCompleted) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: checkout %s has no user_id", ErrMissingMetadata, e.SessionID)
	}
	if e.CustomerID != "" {
		if err := repo.UpsertCustomer(ctx, tx, &domain.Customer{UserID: e.UserID, StripeCustomerID: e.CustomerID, Email: e.Email}); err != nil {
			return err
		}
	}
	status := e.PaymentStatus
	if status == "" {
		status = "paid"
	}
	if err := repo.RecordPayment(ctx, tx, &domain.Payment{
		UserID:         e.UserID,
		StripeObjectID: e.SessionID,
		Kind:           domain.PaymentKindCheckout,
		Amount:         e.Amount,
		Currency:       e.Currency,
		Status:         status,
	}); err != nil {
		return err
	}
	if e.PurchaseType == PurchaseCredits {
		if e.Credits <= 0 {
			return fmt.Errorf("%w: credits checkout %s has no credits amount", ErrMissingMetadata, e.SessionID)
		}
		return repo.IncrementCredits(ctx, tx, e.UserID, e.Credits)
	}
	return nil
}

func (s *BillingService) applySubscription(ctx context.Context, tx *gorm.DB, e SubscriptionChanged) (bool, error) {
	// Subscriptions may arrive before the checkout that links the customer;
	// they are stored without a user and keep any user already recorded.
	userID, err := s.resolveUser(ctx, tx, e.UserID, e.CustomerID)
	if err != nil && !errors.Is(err, ErrUnknownCustomer) {
		return false, err
	}
	return repo.UpsertSubscription(ctx, tx, &domain.Subscription{
		UserID:               userID,
		StripeSubscriptionID: e.SubscriptionID,
		StripeCustomerID:     e.CustomerID,
		Status:               e.Status,
		PriceID:              e.PriceID,
		CurrentPeriodEnd:     e.CurrentPeriodEnd,
		CancelAtPeriodEnd:    e.CancelAtPeriodEnd,
		LastEventAt:          e.Created,
	})
}

func (s *BillingService) applyInvoice(ctx context.Context, tx *gorm.DB, e InvoiceEvent, status string) error {
	userID, err := s.resolveUser(ctx, tx, e.UserID, e.CustomerID)
	if err != nil {
		return err
	}
	if err := repo.RecordPayment(ctx, tx, &domain.Payment{
		UserID:         userID,
		StripeObjectID: e.InvoiceID,
		Kind:           domain.PaymentKindInvoice,
		Amount:         e.Amount,
		Currency:       e.Currency,
		Status:         status,
	}); err != nil {
		return err
	}
	if status == "paid" && e.Credits > 0 {
		return repo.IncrementCredits(ctx, tx, userID, e.Credits)
	}
	return nil
}

// resolveUser prefers the user id carried in metadata and falls back to the
// customer link written at checkout.
func (s *BillingService) resolveUser(ctx context.Context, tx *gorm.DB, userID, customerID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", ErrUnknownCustomer
	}
	c, err := repo.FindCustomerByStripeID(ctx, tx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCustomer, customerID)
	}
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}
