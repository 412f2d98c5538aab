// Coupon HTTP handlers.
//
// This file exposes ledger records to their owners:
//   - GET  /coupons/{code}   (owner-scoped lookup)
//   - POST /coupons          (issue without payment, development only)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/services"
)

// IssueCouponRequest is the JSON payload for issuing a coupon.
type IssueCouponRequest struct {
	// DealID is the catalog entry the coupon is for.
	DealID string `json:"deal_id" binding:"required" example:"6b3f8f2e-1c1d-4a4e-9d2b-1f1a3c0e5d77"`
	// Code optionally fixes the coupon code; one is generated when empty.
	Code string `json:"code,omitempty" example:"NIKE50RUN-3F9A1C"`
}

// GetCoupon godoc
// @ID          getCoupon
// @Summary     Get a coupon
// @Description Returns the ledger record for a code owned by the current user.
// @Tags        Coupons
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       code       path    string  true  "Coupon code"            example(NIKE50RUN-3F9A1C)
//
// @Success     200  {object}  domain.CouponRecord
// @Failure     404  {object}  handlers.ErrorResponse "Coupon not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /coupons/{code} [get]
func (h *Handlers) GetCoupon(c *gin.Context) {
	rec, err := h.redeemSvc.Lookup(c.Request.Context(), userID(c), c.Param("code"))
	if err != nil {
		failService(c, err, ErrCodeLookupFailed)
		return
	}
	ok(c, http.StatusOK, rec)
}

// IssueCoupon godoc
// @ID          issueCoupon
// @Summary     Issue a coupon (development)
// @Description Creates an unredeemed coupon for a deal without going through Stripe checkout.
// @Description Mounted only when DEV_ISSUE_ENABLED is set outside release mode.
// @Tags        Coupons
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key"        example(issue-1)
// @Param       body             body    handlers.IssueCouponRequest  true  "Deal and optional code"
//
// @Success     201  {object}  domain.CouponRecord
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Deal not found"
// @Failure     409  {object}  handlers.ErrorResponse "Code already issued"
// @Failure     422  {object}  handlers.ErrorResponse "Invalid code"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /coupons [post]
func (h *Handlers) IssueCoupon(c *gin.Context) {
	var req IssueCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DealID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deal_id required")
		return
	}

	rec, _, err := h.couponSvc.Issue(c.Request.Context(), services.IssueRequest{
		UserID: userID(c),
		DealID: strings.TrimSpace(req.DealID),
		Code:   req.Code,
	})
	if err != nil {
		failService(c, err, ErrCodeIssueFailed)
		return
	}
	ok(c, http.StatusCreated, rec)
}
