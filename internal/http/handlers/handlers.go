// Package handlers exposes the REST endpoints of the deals backend.
//
// This file holds the service contracts the handlers depend on, the Handlers
// wiring, and small helpers shared by every endpoint (identity, pagination).
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RedemptionService classifies and redeems scanned codes.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RedemptionService interface {
	// Validate classifies code without changing the ledger.
	Validate(ctx context.Context, code string) services.Outcome
	// Scan validates code and redeems it when valid.
	Scan(ctx context.Context, operatorID, code, customerName string) services.Outcome
	// Transactions returns a page of the operator's log and the total count.
	Transactions(ctx context.Context, operatorID string, page, pageSize int) ([]domain.RedemptionTransaction, int64, error)
	// TransactionsVersion returns (count, newest timestamp) for ETags.
	TransactionsVersion(ctx context.Context, operatorID string) (int64, *time.Time, error)
	// Lookup returns a coupon owned by userID.
	Lookup(ctx context.Context, userID, code string) (*domain.CouponRecord, error)
}

// CouponService issues coupons outside the payment flow.
type CouponService interface {
	Issue(ctx context.Context, req services.IssueRequest) (*domain.CouponRecord, bool, error)
}

// DealService serves the deal catalog.
type DealService interface {
	ListPage(ctx context.Context, kind string, page, pageSize int) ([]domain.Deal, int64, error)
	Version(ctx context.Context) (int64, *time.Time, error)
	Get(ctx context.Context, id string) (*domain.Deal, error)
	Search(ctx context.Context, q string, k int) ([]services.DealHit, error)
}

// BillingService applies Stripe events and reports credit balances.
type BillingService interface {
	Apply(ctx context.Context, ev services.BillingEvent) (services.ApplyResult, error)
	Credits(ctx context.Context, userID string) (int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	redeemSvc  RedemptionService
	couponSvc  CouponService
	dealSvc    DealService
	billingSvc BillingService

	// webhookSecret verifies Stripe-Signature. Empty rejects every webhook.
	webhookSecret string
	// webhookTolerance bounds the accepted signature age.
	webhookTolerance time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(redeemSvc RedemptionService, couponSvc CouponService, dealSvc DealService, billingSvc BillingService, webhookSecret string) *Handlers {
	return &Handlers{
		redeemSvc:        redeemSvc,
		couponSvc:        couponSvc,
		dealSvc:          dealSvc,
		billingSvc:       billingSvc,
		webhookSecret:    webhookSecret,
		webhookTolerance: webhook.DefaultTolerance,
	}
}

// userID is the operator or buyer the request acts for.
func userID(c *gin.Context) string { return middleware.OperatorOrAnonymous(c) }

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size, bounding page_size to [1, 100].
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = max(utils.IntOr(c.Query("page"), 1), 1)
	pageSize = utils.Clamp(utils.IntOr(c.Query("page_size"), 20), 1, 100)
	return page, pageSize
}
