// Package scanner implements the operator-side redemption client: a polling
// loop that reads frames from a capture source, decodes coupon codes, asks the
// backend to validate and redeem them, and renders a colored rolling history.
//
// The camera and QR pipeline is external. A FrameSource delivers raw frames
// and a Decoder turns a frame into a code; cmd/scanner wires a line-oriented
// source for keyboard-wedge scanners, which type the decoded payload.
package scanner

import (
	"context"
	"net/url"
	"strings"
)

// Frame is one unit of captured input.
type Frame []byte

// FrameSource is a capture device. Start acquires it and Stop releases it;
// Loop calls Stop exactly once after a successful Start on every exit path.
//
// Read never blocks: it returns (nil, nil) when no frame is ready and io.EOF
// once the source is exhausted.
type FrameSource interface {
	Start(ctx context.Context) error
	Read() (Frame, error)
	Stop() error
}

// Decoder extracts a coupon code from a frame. ok is false when the frame
// holds no code.
type Decoder interface {
	Decode(f Frame) (code string, ok bool)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(Frame) (string, bool)

// Decode calls f.
func (f DecoderFunc) Decode(fr Frame) (string, bool) { return f(fr) }

// TextDecoder reads frames that already carry text. Besides bare codes it
// accepts links of the form https://host/redeem?code=XYZ and "coupon:XYZ"
// payloads, which is what printed QR codes usually encode.
type TextDecoder struct{}

// Decode implements Decoder.
func (TextDecoder) Decode(f Frame) (string, bool) {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return "", false
	}
	if rest, found := strings.CutPrefix(s, "coupon:"); found {
		s = strings.TrimSpace(rest)
	} else if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = strings.TrimSpace(u.Query().Get("code"))
	}
	return s, s != ""
}

// Outcome kinds reported by the backend, plus OutcomeUnreachable for
// transport failures on the client side.
const (
	OutcomeValid            = "valid"
	OutcomeSuccess          = "success"
	OutcomeAlreadyRedeemed  = "already-redeemed"
	OutcomeExpired          = "expired"
	OutcomeInvalid          = "invalid"
	OutcomeNotFound         = "not-found"
	OutcomeStoreUnavailable = "store-unavailable"
	OutcomeUnreachable      = "unreachable"
)

// DealDetails is the deal snapshot returned with an outcome.
type DealDetails struct {
	ID             string `json:"id,omitempty"`
	Title          string `json:"title,omitempty"`
	DiscountValue  string `json:"discount_value,omitempty"`
	BrandName      string `json:"brand_name,omitempty"`
	StoreName      string `json:"store_name,omitempty"`
	CouponCode     string `json:"coupon_code"`
	CustomerName   string `json:"customer_name,omitempty"`
	RedemptionDate string `json:"redemption_date,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
}

// Result is the backend's answer for one code.
type Result struct {
	Type        string       `json:"type"`
	ErrorCode   string       `json:"error_code,omitempty"`
	Outcome     string       `json:"outcome"`
	Message     string       `json:"message"`
	DealDetails *DealDetails `json:"dealDetails,omitempty"`
	// Replayed is true when the backend answered from an earlier attempt
	// carrying the same idempotency key.
	Replayed bool `json:"-"`
}

// Redeemer is the backend as seen by the loop.
type Redeemer interface {
	Validate(ctx context.Context, code string) (Result, error)
	Redeem(ctx context.Context, code, customerName string) (Result, error)
}
