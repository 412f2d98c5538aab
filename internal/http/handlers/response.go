package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/services"
)

// Stable error codes for non-redemption endpoints. Redemption responses carry
// their own error_code (already-redeemed, expired, ...) in OutcomeResponse.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInvalidCode      = "invalid_code"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodeIssueFailed   = "issue_failed"
	ErrCodeListFailed    = "list_failed"
	ErrCodeLookupFailed  = "lookup_failed"
	ErrCodeSearchFailed  = "search_failed"
	ErrCodeBadSignature  = "bad_signature"
	ErrCodeBadEvent      = "bad_event"
	ErrCodeWebhookFailed = "webhook_failed"
	ErrCodeNotConfigured = "not_configured"
)

// ErrorResponse is the error envelope of every non-redemption endpoint.
//
//	{"request_id":"123e4567-...","code":"not_found","message":"deal not found"}
type ErrorResponse struct {
	// Echo of X-Request-ID for log correlation.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Code is one of the ErrCode constants.
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"deal not found"`
}

// serviceError is the HTTP rendering of a service sentinel.
type serviceError struct {
	status int
	code   string
}

var serviceErrors = map[error]serviceError{
	services.ErrCouponNotFound: {http.StatusNotFound, ErrCodeNotFound},
	services.ErrDealNotFound:   {http.StatusNotFound, ErrCodeNotFound},
	services.ErrCodeTaken:      {http.StatusConflict, ErrCodeConflict},
	services.ErrInvalidCode:    {http.StatusUnprocessableEntity, ErrCodeInvalidCode},
	services.ErrEmptyQuery:     {http.StatusBadRequest, ErrCodeBadRequest},
	services.ErrInvalidKind:    {http.StatusBadRequest, ErrCodeBadRequest},
}

// fail aborts with an ErrorResponse. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's fallback handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService renders err. Known service sentinels keep their message;
// anything else is a 500 with fallbackCode and a generic message, and the
// cause is logged instead of returned to the client.
func failService(c *gin.Context, err error, fallbackCode string) {
	for sentinel, se := range serviceErrors {
		if errors.Is(err, sentinel) {
			fail(c, se.status, se.code, err.Error())
			return
		}
	}
	middleware.LoggerFrom(c).Error().Err(err).Str("code", fallbackCode).Msg("service error")
	fail(c, http.StatusInternalServerError, fallbackCode, "internal error")
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
