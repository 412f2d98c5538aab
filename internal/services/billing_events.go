package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
)

// Stripe event types the reconciler understands.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// Checkout purchase types, carried in session metadata "purchase_type".
const (
	PurchaseDeal         = "deal"
	PurchaseCredits      = "credits"
	PurchaseSubscription = "subscription"
)

// BillingEvent is a parsed Stripe event. The concrete type is one of
// CheckoutCompleted, SubscriptionChanged, SubscriptionDeleted, InvoicePaid,
// InvoicePaymentFailed or Ignored.
type BillingEvent interface {
	Meta() EventMeta
}

// EventMeta is common to every variant.
type EventMeta struct {
	ID      string
	Type    string
	Created time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// CheckoutCompleted is a finished Checkout session.
type CheckoutCompleted struct {
	EventMeta
	SessionID     string
	CustomerID    string
	Email         string
	UserID        string
	PurchaseType  string
	DealID        string
	CouponCode    string
	Credits       int64
	Amount        decimal.Decimal
	Currency      string
	PaymentStatus string
}

// SubscriptionChanged covers subscription creation and updates.
type SubscriptionChanged struct {
	EventMeta
	SubscriptionID    string
	CustomerID        string
	UserID            string
	Status            string
	PriceID           string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// SubscriptionDeleted is a cancelled subscription.
type SubscriptionDeleted struct {
	EventMeta
	SubscriptionID string
	CustomerID     string
	UserID         string
}

// InvoiceEvent carries the invoice fields used by both invoice variants.
type InvoiceEvent struct {
	EventMeta
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	UserID         string
	Credits        int64
	Amount         decimal.Decimal
	Currency       string
}

// InvoicePaid is a successfully collected invoice.
type InvoicePaid struct{ InvoiceEvent }

// InvoicePaymentFailed is an invoice whose collection attempt failed.
type InvoicePaymentFailed struct{ InvoiceEvent }

// Ignored is any event type the reconciler does not act on.
type Ignored struct{ EventMeta }

// ParseEvent converts a verified Stripe event into a BillingEvent.
func ParseEvent(ev stripe.Event) (BillingEvent, error) {
	meta := EventMeta{ID: ev.ID, Type: string(ev.Type), Created: time.Unix(ev.Created, 0).UTC()}
	if ev.ID == "" {
		return nil, fmt.Errorf("stripe event without id")
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		switch meta.Type {
		case EventCheckoutCompleted, EventSubscriptionCreated, EventSubscriptionUpdated,
			EventSubscriptionDeleted, EventInvoicePaid, EventInvoicePaymentFailed:
			return nil, fmt.Errorf("stripe event %s (%s) has no data object", ev.ID, meta.Type)
		}
		return Ignored{meta}, nil
	}

	switch meta.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		return parseCheckout(meta, &s), nil

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		if meta.Type == EventSubscriptionDeleted {
			return SubscriptionDeleted{
				EventMeta:      meta,
				SubscriptionID: sub.ID,
				CustomerID:     customerID(sub.Customer),
				UserID:         sub.Metadata["user_id"],
			}, nil
		}
		return parseSubscription(meta, &sub), nil

	case EventInvoicePaid, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		ie := parseInvoice(meta, &inv)
		if meta.Type == EventInvoicePaid {
			return InvoicePaid{ie}, nil
		}
		return InvoicePaymentFailed{ie}, nil
	}
	return Ignored{meta}, nil
}

func parseCheckout(meta EventMeta, s *stripe.CheckoutSession) CheckoutCompleted {
	md := s.Metadata
	out := CheckoutCompleted{
		EventMeta:     meta,
		SessionID:     s.ID,
		CustomerID:    customerID(s.Customer),
		UserID:        firstNonEmpty(md["user_id"], s.ClientReferenceID),
		PurchaseType:  strings.ToLower(strings.TrimSpace(md["purchase_type"])),
		DealID:        md["deal_id"],
		CouponCode:    md["coupon_code"],
		Credits:       parseCredits(md["credits"]),
		Currency:      string(s.Currency),
		Amount:        minorToDecimal(s.AmountTotal, string(s.Currency)),
		PaymentStatus: string(s.PaymentStatus),
	}
	if s.CustomerDetails != nil {
		out.Email = s.CustomerDetails.Email
	}
	return out
}

func parseSubscription(meta EventMeta, sub *stripe.Subscription) SubscriptionChanged {
	out := SubscriptionChanged{
		EventMeta:         meta,
		SubscriptionID:    sub.ID,
		CustomerID:        customerID(sub.Customer),
		UserID:            sub.Metadata["user_id"],
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	if sub.Items != nil {
		for _, it := range sub.Items.Data {
			if it != nil && it.Price != nil {
				out.PriceID = it.Price.ID
				break
			}
		}
	}
	return out
}

func parseInvoice(meta EventMeta, inv *stripe.Invoice) InvoiceEvent {
	md := map[string]string{}
	if inv.SubscriptionDetails != nil {
		for k, v := range inv.SubscriptionDetails.Metadata {
			md[k] = v
		}
	}
	for k, v := range inv.Metadata {
		md[k] = v
	}
	amount := inv.AmountPaid
	if meta.Type == EventInvoicePaymentFailed {
		amount = inv.AmountDue
	}
	out := InvoiceEvent{
		EventMeta:  meta,
		InvoiceID:  inv.ID,
		CustomerID: customerID(inv.Customer),
		UserID:     md["user_id"],
		Credits:    parseCredits(md["credits"]),
		Currency:   string(inv.Currency),
		Amount:     minorToDecimal(amount, string(inv.Currency)),
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	return out
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func parseCredits(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// minorToDecimal converts a Stripe amount in the currency's smallest unit.
func minorToDecimal(amount int64, currency string) decimal.Decimal {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
