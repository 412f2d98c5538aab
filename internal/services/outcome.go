package services

import (
	"fmt"
	"time"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// OutcomeKind classifies one validation or redemption attempt.
type OutcomeKind string

const (
	KindValid            OutcomeKind = "valid"
	KindSuccess          OutcomeKind = "success"
	KindAlreadyRedeemed  OutcomeKind = "already-redeemed"
	KindExpired          OutcomeKind = "expired"
	KindInvalid          OutcomeKind = "invalid"
	KindNotFound         OutcomeKind = "not-found"
	KindStoreUnavailable OutcomeKind = "store-unavailable"
)

// Outcome is the discriminated result of Validate, Redeem and Scan.
//
// Record is set for Valid, Success, AlreadyRedeemed and Expired. It is the
// record as observed by this attempt (for Success: after the transition).
// Err is set only for StoreUnavailable.
type Outcome struct {
	Kind   OutcomeKind
	Code   string
	Record *domain.CouponRecord
	At     time.Time
	Err    error
}

// OK reports whether the attempt redeemed (or could redeem) the coupon.
func (o Outcome) OK() bool { return o.Kind == KindValid || o.Kind == KindSuccess }

// Message is the operator-facing sentence for the outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case KindValid:
		return "Coupon is valid and can be redeemed."
	case KindSuccess:
		return "Coupon redeemed successfully."
	case KindAlreadyRedeemed:
		if o.Record != nil && o.Record.RedemptionDate != nil {
			return fmt.Sprintf("This coupon was already redeemed on %s.", o.Record.RedemptionDate.UTC().Format("Jan 2, 2006 15:04 MST"))
		}
		return "This coupon has already been redeemed."
	case KindExpired:
		if o.Record != nil {
			return fmt.Sprintf("This coupon expired on %s.", o.Record.ExpiryDate.UTC().Format("Jan 2, 2006"))
		}
		return "This coupon has expired."
	case KindNotFound:
		return "Coupon not found. Please check the code and try again."
	case KindStoreUnavailable:
		return "Redemption service is temporarily unavailable. Please retry."
	default:
		return "Invalid coupon code."
	}
}

// txOutcome maps a kind to the persisted transaction outcome, reporting false
// for kinds that are not logged.
func (k OutcomeKind) txOutcome() (domain.TransactionOutcome, bool) {
	switch k {
	case KindSuccess:
		return domain.OutcomeSuccess, true
	case KindAlreadyRedeemed:
		return domain.OutcomeAlreadyRedeemed, true
	case KindExpired:
		return domain.OutcomeExpired, true
	}
	return "", false
}
