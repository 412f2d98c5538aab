package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestRedactingLogger_ScrubsPII(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"x-api-key"}}))
	r.GET("/coupons/:code", func(c *gin.Context) { c.Status(http.StatusOK) })

	q := "contact=jane.doe+promo@example.com&phone=+1-555-123-4567&deal=6b3f8f2e-1c1d-4a4e-9d2b-1f1a3c0e5d77"
	req := httptest.NewRequest(http.MethodGet, "/coupons/NIKE50RUN-3F9A1C?"+q, nil)
	req.Header.Set("Authorization", "Bearer sk_live_123")
	req.Header.Set("Cookie", "session=abc")
	req.Header.Set("X-Api-Key", "k-999")
	req.Header.Set("X-Note", "ring jane@shop.example on 555-123-4567")
	req.Header.Set(requestIDHeader, "rid-pii")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	for _, leaked := range []string{"NIKE50RUN-3F9A1C", "jane.doe", "sk_live_123", "session=abc", "k-999", "jane@shop", "6b3f8f2e"} {
		if strings.Contains(logs, leaked) {
			t.Errorf("%q leaked: %s", leaked, logs)
		}
	}
	for _, want := range []string{
		`"level":"info"`,
		`"request_id":"rid-pii"`,
		`"path":"/coupons/:code"`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Note":"ring [REDACTED:email] on [REDACTED:phone]"`,
		`deal=[REDACTED:id]`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("missing %s in %s", want, logs)
		}
	}
}

func TestRedactingLogger_StatusLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/s/:status", func(c *gin.Context) {
		var code int
		fmt.Sscan(c.Param("status"), &code)
		c.Status(code)
	})

	for status, level := range map[int]string{
		http.StatusOK:                  "info",
		http.StatusNotFound:            "warn",
		http.StatusUnprocessableEntity: "warn",
		http.StatusBadGateway:          "error",
	} {
		buf.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, fmt.Sprintf("/s/%d", status), nil))
		if !strings.Contains(buf.String(), `"level":"`+level+`"`) {
			t.Errorf("status %d: want level %s, got %s", status, level, buf.String())
		}
	}
}

func TestRedactingLogger_MasksStripeSignature_AndScopesLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	buf := captureLogger(t)

	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{}))
	r.POST("/webhooks/stripe", func(c *gin.Context) {
		// Services log through the request context.
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1700000000,v1=deadbeef")
	req.Header.Set("X-Request-ID", "rid-hook")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	logs := buf.String()
	if strings.Contains(logs, "deadbeef") || !strings.Contains(logs, `"Stripe-Signature":"[REDACTED]"`) {
		t.Fatalf("Stripe-Signature must be masked: %s", logs)
	}
	if !strings.Contains(logs, `"message":"from service"`) || !strings.Contains(logs, `"request_id":"rid-hook","path":"/webhooks/stripe","message":"from service"`) {
		t.Fatalf("request context logger missing scoped fields: %s", logs)
	}
}

func TestRedactingLogger_MasksCouponCodesInQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{MaskParams: []string{"session_id"}}))
	r.GET("/deals/search", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/deals/search?q=shoes&code=NIKE50RUN-3F9A1C&Coupon=AMC10&session_id=cs_test_1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	for _, leaked := range []string{"NIKE50RUN-3F9A1C", "AMC10", "cs_test_1"} {
		if strings.Contains(logs, leaked) {
			t.Fatalf("%q leaked into logs: %s", leaked, logs)
		}
	}
	if !strings.Contains(logs, `q=shoes&code=[REDACTED]&Coupon=[REDACTED]&session_id=[REDACTED]`) {
		t.Fatalf("unexpected query: %s", logs)
	}
}

func TestRedactingLogger_RedemptionOutcomeLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.POST("/redemptions", func(c *gin.Context) {
		SetOutcome(c, "already-redeemed")
		c.Status(http.StatusConflict)
	})
	r.POST("/redemptions/unavailable", func(c *gin.Context) {
		SetOutcome(c, "store-unavailable")
		c.Status(http.StatusServiceUnavailable)
	})

	req := httptest.NewRequest(http.MethodPost, "/redemptions", nil)
	req.Header.Set("X-User-ID", "store-42")
	r.ServeHTTP(httptest.NewRecorder(), req)
	first := buf.String()
	if !strings.Contains(first, `"level":"info"`) || !strings.Contains(first, `"outcome":"already-redeemed"`) || !strings.Contains(first, `"operator":"store-42"`) {
		t.Fatalf("rejected scan should log at info with outcome: %s", first)
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/redemptions/unavailable", nil))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx must log at error: %s", buf.String())
	}
}

func TestRedactingLogger_ScopedLoggerCarriesTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	defer span.End()

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/deals", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("listing")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/deals", nil).WithContext(ctx))

	want := `"trace_id":"` + span.SpanContext().TraceID().String() + `"`
	if !strings.Contains(buf.String(), want) {
		t.Fatalf("missing %s in %s", want, buf.String())
	}
}
