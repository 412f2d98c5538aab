package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func keyFor(t *testing.T, setup func(c *gin.Context)) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/redemptions", nil)
	c.Request.RemoteAddr = "203.0.113.9:12345"
	if setup != nil {
		setup(c)
	}
	return KeyByOperator()(c)
}

func TestKeyByOperator(t *testing.T) {
	if got := keyFor(t, nil); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	if got := keyFor(t, func(c *gin.Context) { c.Request.Header.Set("X-User-ID", " store-42 ") }); got != "op:store-42" {
		t.Fatalf("header key = %q", got)
	}
	got := keyFor(t, func(c *gin.Context) {
		c.Request.Header.Set("X-User-ID", "store-42")
		c.Set("userID", "auth-7")
	})
	if got != "op:auth-7" {
		t.Fatalf("context identity must win, got %q", got)
	}
}

func TestRateLimiter_BucketsAndIdleSweep(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}
	now := time.Now()
	a := rl.limiterFor("op:a", now)
	if rl.limiterFor("op:a", now) != a {
		t.Fatal("bucket must be reused for the same key")
	}

	rl.idleTTL = time.Minute
	rl.sweepEvery = 1
	rl.limiterFor("op:b", now.Add(2*time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["op:a"]; ok {
		t.Fatal("idle bucket should be swept")
	}
	if _, ok := rl.buckets["op:b"]; !ok {
		t.Fatal("fresh bucket missing")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]string{
		10 * time.Millisecond:   "1",
		1500 * time.Millisecond: "2",
		time.Hour:               "60",
	}
	for d, want := range cases {
		if got := retryAfterSeconds(d); got != want {
			t.Fatalf("retryAfterSeconds(%v) = %q; want %q", d, got, want)
		}
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IsRateBypass(c) {
		t.Fatal("bypass must default to false")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatal("bypass flag not read")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatal("non-bool flag must read as false")
	}
}

func newLimitedRouter(rl *RateLimiter, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	if pre != nil {
		r.Use(pre)
	}
	r.Use(rl.Handler())
	r.POST("/redemptions", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/webhooks/stripe", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r http.Handler, path, operator string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if operator != "" {
		req.Header.Set("X-User-ID", operator)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_ThrottlesPerOperator(t *testing.T) {
	r := newLimitedRouter(NewRateLimiter(1, 1, KeyByOperator()), nil)

	if w := post(r, "/redemptions", "store-1"); w.Code != http.StatusOK {
		t.Fatalf("first scan = %d", w.Code)
	}
	w := post(r, "/redemptions", "store-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second scan = %d; want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
		t.Fatalf("body = %v", body)
	}

	// Another station has its own bucket.
	if w := post(r, "/redemptions", "store-2"); w.Code != http.StatusOK {
		t.Fatalf("other operator = %d", w.Code)
	}
}

func TestRateLimiter_ExemptRoutesAndReplays(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByOperator()).Exempt("/webhooks/stripe")
	r := newLimitedRouter(rl, nil)
	for i := 0; i < 5; i++ {
		if w := post(r, "/webhooks/stripe", ""); w.Code != http.StatusOK {
			t.Fatalf("webhook %d = %d", i, w.Code)
		}
	}

	replays := newLimitedRouter(rl, func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	for i := 0; i < 3; i++ {
		if w := post(replays, "/redemptions", "store-9"); w.Code != http.StatusOK {
			t.Fatalf("replay %d = %d", i, w.Code)
		}
	}
}
