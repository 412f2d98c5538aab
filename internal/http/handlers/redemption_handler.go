// Redemption HTTP handlers.
//
// This file exposes the point-of-sale endpoints:
//   - POST /redemptions/validate   (classify a scanned code, no state change)
//   - POST /redemptions            (validate and redeem)
//
// Both endpoints always answer with an OutcomeResponse; the HTTP status mirrors
// the outcome kind so clients that only look at the status still behave.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
)

//
// DTOs
//

// RedeemRequest is the JSON payload for validate and redeem.
type RedeemRequest struct {
	// Code is the scanned coupon payload. Blank or malformed codes are
	// answered with an "invalid" outcome, not a 400.
	Code string `json:"code" example:"NIKE50RUN-3F9A1C"`
	// CustomerName is optional and recorded on the transaction.
	CustomerName string `json:"customer_name,omitempty" example:"Jane Doe"`
}

// DealDetails is the deal snapshot echoed with an outcome. Fields are omitted
// when the outcome carries no record (invalid, not-found).
type DealDetails struct {
	ID             string     `json:"id,omitempty"              example:"6b3f8f2e-1c1d-4a4e-9d2b-1f1a3c0e5d77"`
	Title          string     `json:"title,omitempty"           example:"50% off running shoes"`
	DiscountValue  string     `json:"discount_value,omitempty"  example:"50% off"`
	BrandName      string     `json:"brand_name,omitempty"      example:"Nike"`
	StoreName      string     `json:"store_name,omitempty"      example:"Nike Store Soho"`
	CouponCode     string     `json:"coupon_code"               example:"NIKE50RUN-3F9A1C"`
	CustomerName   string     `json:"customer_name,omitempty"   example:"Jane Doe"`
	RedemptionDate *time.Time `json:"redemption_date,omitempty" example:"2026-01-02T15:04:05Z"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"     example:"2026-02-01T00:00:00Z"`
}

// OutcomeResponse is the body of every redemption response.
//
//	{ "type": "success", "message": "...", "dealDetails": {...} }
//	{ "type": "error", "error_code": "expired", "message": "...", "dealDetails": {...} }
type OutcomeResponse struct {
	// Type is "success" (valid or redeemed) or "error".
	Type string `json:"type" example:"success"`
	// ErrorCode is set when Type is "error".
	ErrorCode string `json:"error_code,omitempty" example:"already-redeemed"`
	// Outcome is the precise kind (valid, success, already-redeemed, ...).
	Outcome     string       `json:"outcome" example:"success"`
	Message     string       `json:"message" example:"Coupon redeemed successfully."`
	DealDetails *DealDetails `json:"dealDetails,omitempty"`
}

//
// Helpers
//

// outcomeStatus maps an outcome kind to its HTTP status.
func outcomeStatus(k services.OutcomeKind) int {
	switch k {
	case services.KindValid, services.KindSuccess:
		return http.StatusOK
	case services.KindAlreadyRedeemed:
		return http.StatusConflict
	case services.KindExpired:
		return http.StatusGone
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func toOutcomeResponse(out services.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Type:    "success",
		Outcome: string(out.Kind),
		Message: out.Message(),
	}
	if !out.OK() {
		resp.Type = "error"
		resp.ErrorCode = string(out.Kind)
	}

	if rec := out.Record; rec != nil {
		exp := rec.ExpiryDate
		d := &DealDetails{
			ID:             rec.ID,
			Title:          rec.DealTitle,
			DiscountValue:  rec.DiscountValue,
			BrandName:      rec.BrandName,
			StoreName:      rec.StoreName,
			CouponCode:     rec.Code,
			RedemptionDate: rec.RedemptionDate,
			ExpiryDate:     &exp,
		}
		if rec.RedeemedBy != nil {
			d.CustomerName = *rec.RedeemedBy
		}
		resp.DealDetails = d
	} else if out.Code != "" && out.Kind != services.KindInvalid {
		resp.DealDetails = &DealDetails{CouponCode: out.Code}
	}
	return resp
}

func writeOutcome(c *gin.Context, out services.Outcome) {
	status := outcomeStatus(out.Kind)
	middleware.SetOutcome(c, string(out.Kind))
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
		middleware.LoggerFrom(c).Error().Err(out.Err).Str("path", c.FullPath()).Msg("redemption store unavailable")
	}
	ok(c, status, toOutcomeResponse(out))
}

//
// Handlers
//

// ValidateCoupon godoc
// @ID          validateCoupon
// @Summary     Validate a scanned coupon
// @Description Classifies a code as valid, already-redeemed, expired, invalid or not-found without changing the ledger.
// @Tags        Redemptions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Operator ID (demo header)"  example(store-42)
// @Param       body       body    handlers.RedeemRequest  true  "Scanned code"
//
// @Success     200  {object}  handlers.OutcomeResponse  "Valid"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     404  {object}  handlers.OutcomeResponse  "Not found"
// @Failure     409  {object}  handlers.OutcomeResponse  "Already redeemed"
// @Failure     410  {object}  handlers.OutcomeResponse  "Expired"
// @Failure     422  {object}  handlers.OutcomeResponse  "Invalid code"
// @Failure     503  {object}  handlers.OutcomeResponse  "Store unavailable"
// @Router      /redemptions/validate [post]
func (h *Handlers) ValidateCoupon(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeOutcome(c, h.redeemSvc.Validate(c.Request.Context(), req.Code))
}

// RedeemCoupon godoc
// @ID          redeemCoupon
// @Summary     Redeem a scanned coupon
// @Description Validates the code and, when valid, marks it redeemed and appends a transaction for the operator.
// @Description Honours Idempotency-Key: a retried request replays the original outcome.
// @Tags        Redemptions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Operator ID (demo header)"  example(store-42)
// @Param       Idempotency-Key  header  string  false "Idempotency key"            example(scan-7f3a)
// @Param       body             body    handlers.RedeemRequest  true  "Scanned code and optional customer name"
//
// @Success     200  {object}  handlers.OutcomeResponse  "Redeemed"
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     404  {object}  handlers.OutcomeResponse  "Not found"
// @Failure     409  {object}  handlers.OutcomeResponse  "Already redeemed"
// @Failure     410  {object}  handlers.OutcomeResponse  "Expired"
// @Failure     422  {object}  handlers.OutcomeResponse  "Invalid code"
// @Failure     503  {object}  handlers.OutcomeResponse  "Store unavailable"
// @Router      /redemptions [post]
func (h *Handlers) RedeemCoupon(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeOutcome(c, h.redeemSvc.Scan(c.Request.Context(), userID(c), req.Code, req.CustomerName))
}
