package domain

import (
	"time"

	"github.com/google/uuid"
)

// Idempotency is the stored response of a write, keyed by the operator who
// sent it, the route pattern it hit and the client's Idempotency-Key. A retry
// carrying the same triple is answered from Body instead of running again,
// so a scanner that lost the first response still learns the coupon was
// redeemed by its own request.
type Idempotency struct {
	ID         string `gorm:"type:TEXT NOT NULL;primaryKey"`
	OperatorID string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_operator_route_key,priority:1"`
	Route      string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_operator_route_key,priority:2"`
	Key        string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_operator_route_key,priority:3"`

	// RequestHash fingerprints the request that produced Body, so a key
	// reused for a different request can be refused.
	RequestHash string `gorm:"type:TEXT NOT NULL;default:''"`

	Status    int       `gorm:"type:INTEGER NOT NULL"`
	Body      string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:TIMESTAMP NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:TIMESTAMP NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// NewIdempotency records a response produced at now that may be replayed
// for ttl.
func NewIdempotency(operatorID, route, key, requestHash string, status int, body []byte, now time.Time, ttl time.Duration) *Idempotency {
	return &Idempotency{
		ID:          uuid.NewString(),
		OperatorID:  operatorID,
		Route:       route,
		Key:         key,
		RequestHash: requestHash,
		Status:      status,
		Body:        string(body),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// Live reports whether the record may still be replayed at now.
func (i *Idempotency) Live(now time.Time) bool {
	return now.Before(i.ExpiresAt)
}
