package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 10

// HTTPRedeemer calls the backend's /redemptions endpoints.
//
// Redeem sends an Idempotency-Key and retries transport errors and 503s with
// the same key, so a retry after a lost response replays the original outcome
// instead of reporting the coupon as already redeemed.
type HTTPRedeemer struct {
	BaseURL    string // e.g. http://localhost:8080/api/v1
	OperatorID string // sent as X-User-ID
	Client     *http.Client
	// Retries is the number of extra attempts for Redeem.
	Retries int
	// Backoff is the wait between attempts when the server sends no Retry-After.
	Backoff time.Duration
	// NewKey generates idempotency keys.
	NewKey func() string
}

// NewHTTPRedeemer returns a client with a 10s timeout and two retries.
func NewHTTPRedeemer(baseURL, operatorID string) *HTTPRedeemer {
	return &HTTPRedeemer{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		OperatorID: operatorID,
		Client:     &http.Client{Timeout: 10 * time.Second},
		Retries:    2,
		Backoff:    500 * time.Millisecond,
		NewKey:     func() string { return "scan-" + uuid.NewString() },
	}
}

type redeemBody struct {
	Code         string `json:"code"`
	CustomerName string `json:"customer_name,omitempty"`
}

// Validate implements Redeemer.
func (c *HTTPRedeemer) Validate(ctx context.Context, code string) (Result, error) {
	res, _, err := c.post(ctx, "/redemptions/validate", "", redeemBody{Code: code})
	return res, err
}

// Redeem implements Redeemer.
func (c *HTTPRedeemer) Redeem(ctx context.Context, code, customerName string) (Result, error) {
	key := c.NewKey()
	body := redeemBody{Code: code, CustomerName: customerName}

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		res, wait, err := c.post(ctx, "/redemptions", key, body)
		if err == nil && res.Outcome != OutcomeStoreUnavailable {
			return res, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("backend: %s", res.Message)
		} else {
			lastErr = err
		}
		if attempt == c.Retries || ctx.Err() != nil {
			if err == nil {
				return res, nil
			}
			break
		}
		if wait <= 0 {
			wait = c.Backoff
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return Result{}, lastErr
}

// post sends body to path and decodes the outcome payload. It returns the
// server's Retry-After hint alongside the result.
func (c *HTTPRedeemer) post(ctx context.Context, path, idemKey string, body redeemBody) (Result, time.Duration, error) {
	ctx, span := otel.Tracer("scanner/HTTPRedeemer").Start(ctx, "POST "+path)
	defer span.End()
	span.SetAttributes(attribute.String("coupon.code", body.Code))

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Result{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.OperatorID != "" {
		req.Header.Set("X-User-ID", c.OperatorID)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.Client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return Result{}, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, 0, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil || res.Outcome == "" {
		// Not an outcome payload: the request was rejected before the
		// redemption handler (bad JSON, rate limit, proxy error).
		err := fmt.Errorf("backend error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		span.SetStatus(codes.Error, "unexpected response")
		return Result{}, retryAfter(resp), err
	}
	res.Replayed = resp.Header.Get("Idempotency-Replayed") == "true"
	span.SetAttributes(attribute.String("redemption.outcome", res.Outcome))
	return res, retryAfter(resp), nil
}

// retryAfter parses a delay-seconds Retry-After header.
func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
