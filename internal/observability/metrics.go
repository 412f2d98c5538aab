package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Domain collectors. Labels are closed sets (outcome kinds, Stripe event
// types the service understands, a fixed result vocabulary).
var (
	RedemptionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_outcomes_total",
			Help: "Redemption attempts by classified outcome.",
		},
		[]string{"outcome"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Stripe webhook events by type and processing result.",
		},
		[]string{"type", "result"},
	)

	CouponsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupons_expired_total",
			Help: "Coupons moved to expired by the sweeper.",
		},
	)
)

// Webhook results.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookFailed    = "failed"
	WebhookRejected  = "rejected"

	WebhookBadSignature = "bad_signature"
	WebhookBadEvent     = "bad_event"
)

func init() {
	prometheus.MustRegister(RedemptionOutcomes, WebhookEvents, CouponsExpired)
}
