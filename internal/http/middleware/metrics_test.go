package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/coupons/:code", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/redemptions", func(c *gin.Context) { c.Status(http.StatusConflict) })

	coupon := httpRequests.WithLabelValues("GET", "/coupons/:code", "200")
	conflict := httpRequests.WithLabelValues("POST", "/redemptions", "409")
	unmatched := httpRequests.WithLabelValues("GET", unmatchedRoute, "404")
	baseCoupon, baseConflict, baseUnmatched := testutil.ToFloat64(coupon), testutil.ToFloat64(conflict), testutil.ToFloat64(unmatched)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/coupons/NIKE50-A", nil),
		httptest.NewRequest(http.MethodGet, "/coupons/NIKE50-B", nil),
		httptest.NewRequest(http.MethodPost, "/redemptions", nil),
		httptest.NewRequest(http.MethodGet, "/wp-login.php", nil),
		httptest.NewRequest(http.MethodGet, "/.env", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(coupon) - baseCoupon; got != 2 {
		t.Fatalf("coupon lookups counted %v; want 2 under one route label", got)
	}
	if got := testutil.ToFloat64(conflict) - baseConflict; got != 1 {
		t.Fatalf("409 redemptions counted %v; want 1", got)
	}
	if got := testutil.ToFloat64(unmatched) - baseUnmatched; got != 2 {
		t.Fatalf("unmatched counted %v; want 2", got)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v; want 0", v)
	}
}
