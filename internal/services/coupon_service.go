// Package services – CouponService
//
// CouponService creates ledger records when a purchase completes: from the
// Stripe reconciliation path (keyed by checkout session id) and from the
// development-only POST /coupons endpoint. The deal is snapshotted into the
// record at issue time.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/ledger"
)

// DealGetter resolves catalog entries. *DealService implements it.
type DealGetter interface {
	Get(ctx context.Context, id string) (*domain.Deal, error)
}

// IssueRequest describes one coupon to create.
type IssueRequest struct {
	UserID string
	DealID string
	// Code is optional; when empty a code is derived from the deal. For a
	// purchase (SourceRef set) Code is only the base of the generated code,
	// since several buyers may share one.
	Code string
	// SourceRef makes issuance idempotent per external purchase (e.g. a
	// checkout session id). Optional.
	SourceRef string
}

// CouponService issues coupons into the ledger.
type CouponService struct {
	Store ledger.Store
	Deals DealGetter
	// TTL is the validity window used when the deal does not set ValidDays.
	TTL time.Duration
	Now func() time.Time
}

// NewCouponService constructs a CouponService.
func NewCouponService(store ledger.Store, deals DealGetter, ttl time.Duration) *CouponService {
	return &CouponService{
		Store: store,
		Deals: deals,
		TTL:   ttl,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates an unredeemed coupon for req. When req.SourceRef was already
// used, the existing coupon is returned with created == false.
func (s *CouponService) Issue(ctx context.Context, req IssueRequest) (rec *domain.CouponRecord, created bool, err error) {
	ctx, span := otel.Tracer("services/CouponService").Start(ctx, "Issue",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("deal.id", req.DealID),
		),
	)
	defer span.End()

	if req.SourceRef != "" {
		existing, err := s.Store.FindBySourceRef(ctx, req.SourceRef)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return nil, false, err
		}
	}

	deal, err := s.Deals.Get(ctx, req.DealID)
	if err != nil {
		return nil, false, err
	}

	explicit := strings.TrimSpace(req.Code)
	base := deal.CouponCode
	if req.SourceRef != "" && explicit != "" {
		base, explicit = explicit, ""
	}

	now := s.Now()
	ttl := s.TTL
	if deal.ValidDays > 0 {
		ttl = time.Duration(deal.ValidDays) * 24 * time.Hour
	}

	for attempt := 1; ; attempt++ {
		code := explicit
		if code == "" {
			code = generateCode(base)
		}
		if _, ok := normalizeCode(code); !ok {
			return nil, false, ErrInvalidCode
		}
		rec = &domain.CouponRecord{
			Code:          code,
			UserID:        req.UserID,
			Status:        domain.CouponUnredeemed,
			DealID:        deal.ID,
			DealTitle:     deal.Title,
			DiscountValue: deal.DiscountValue,
			BrandName:     deal.BrandName,
			StoreName:     deal.StoreName,
			PurchaseDate:  now,
			ExpiryDate:    now.Add(ttl),
		}
		if req.SourceRef != "" {
			ref := req.SourceRef
			rec.SourceRef = &ref
		}

		err = s.Store.Issue(ctx, rec)
		if err == nil {
			break
		}
		if !errors.Is(err, ledger.ErrDuplicate) {
			return nil, false, fmt.Errorf("issue coupon: %w", err)
		}
		if req.SourceRef != "" {
			// Concurrent delivery of the same purchase won the insert.
			if existing, ferr := s.Store.FindBySourceRef(ctx, req.SourceRef); ferr == nil {
				return existing, false, nil
			}
		}
		if explicit != "" {
			return nil, false, ErrCodeTaken
		}
		// A generated code collided; draw a new suffix.
		if attempt == maxIssueAttempts {
			return nil, false, fmt.Errorf("issue coupon: no free code after %d attempts: %w", attempt, err)
		}
	}

	loggerFrom(ctx).Info().Str("code", rec.Code).Str("deal_id", deal.ID).Str("user_id", req.UserID).Msg("coupon issued")
	return rec, true, nil
}

const maxIssueAttempts = 5

// generateCode derives a unique code from the deal's base code, e.g.
// NIKE50RUN-3F9A1C. Deals without a base code get a CPN- prefix.
func generateCode(base string) string {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = "CPN"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return base + "-" + suffix
}
