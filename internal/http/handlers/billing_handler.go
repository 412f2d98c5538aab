// Billing HTTP handlers.
//
// This file exposes:
//   - GET  /credits            (caller's credit balance)
//   - POST /webhooks/stripe    (signed Stripe event delivery)
//
// Webhook responses follow Stripe's retry contract: 2xx acknowledges the
// delivery, anything else is retried with backoff. Events that can never
// succeed are therefore acknowledged with result "rejected".
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/tbourn/go-deals-backend/internal/http/middleware"
	"github.com/tbourn/go-deals-backend/internal/observability"
	"github.com/tbourn/go-deals-backend/internal/services"
)

// maxWebhookBytes bounds the webhook payload read.
const maxWebhookBytes = 1 << 20

// CreditsResponse is the caller's credit balance.
type CreditsResponse struct {
	UserID  string `json:"user_id" example:"user123"`
	Balance int64  `json:"balance" example:"120"`
}

// WebhookResponse acknowledges a Stripe delivery.
type WebhookResponse struct {
	EventID string `json:"event_id" example:"evt_1Nq..."`
	Type    string `json:"type"     example:"checkout.session.completed"`
	// Result is applied, duplicate, ignored or rejected.
	Result string `json:"result" example:"applied"`
}

// GetCredits godoc
// @ID          getCredits
// @Summary     Get credit balance
// @Tags        Billing
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} handlers.CreditsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /credits [get]
func (h *Handlers) GetCredits(c *gin.Context) {
	uid := userID(c)
	bal, err := h.billingSvc.Credits(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeLookupFailed)
		return
	}
	ok(c, http.StatusOK, CreditsResponse{UserID: uid, Balance: bal})
}

// StripeWebhook godoc
// @ID          stripeWebhook
// @Summary     Stripe webhook
// @Description Verifies the Stripe-Signature header and applies the event exactly once.
// @Description Permanently unprocessable events are acknowledged with result "rejected".
// @Tags        Billing
// @Accept      json
// @Produce     json
//
// @Param       Stripe-Signature  header  string  true  "Stripe signature"
//
// @Success     200  {object} handlers.WebhookResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad signature or payload"
// @Failure     500  {object} handlers.ErrorResponse "Transient failure, Stripe will retry"
// @Failure     503  {object} handlers.ErrorResponse "Webhook secret not configured"
// @Router      /webhooks/stripe [post]
func (h *Handlers) StripeWebhook(c *gin.Context) {
	if h.webhookSecret == "" {
		fail(c, http.StatusServiceUnavailable, ErrCodeNotConfigured, "stripe webhook secret not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	// Events sent with an API version other than the library's are accepted:
	// the parser only reads fields that are stable across versions.
	ev, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{Tolerance: h.webhookTolerance, IgnoreAPIVersionMismatch: true})
	if err != nil {
		observability.WebhookEvents.WithLabelValues("unknown", observability.WebhookBadSignature).Inc()
		fail(c, http.StatusBadRequest, ErrCodeBadSignature, "invalid Stripe signature")
		return
	}

	parsed, err := services.ParseEvent(ev)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(string(ev.Type), observability.WebhookBadEvent).Inc()
		fail(c, http.StatusBadRequest, ErrCodeBadEvent, err.Error())
		return
	}

	res, err := h.billingSvc.Apply(c.Request.Context(), parsed)
	switch {
	case err == nil:
		ok(c, http.StatusOK, WebhookResponse{EventID: ev.ID, Type: string(ev.Type), Result: string(res)})
	case services.IsPermanent(err):
		middleware.LoggerFrom(c).Warn().Err(err).Str("event_id", ev.ID).Msg("stripe event rejected")
		ok(c, http.StatusOK, WebhookResponse{EventID: ev.ID, Type: string(ev.Type), Result: observability.WebhookRejected})
	default:
		fail(c, http.StatusInternalServerError, ErrCodeWebhookFailed, "event processing failed")
	}
}
