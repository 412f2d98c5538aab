package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/services"
)

func TestGetCoupon(t *testing.T) {
	rec := sampleRecord(domain.CouponUnredeemed)
	svc := &stubRedeem{lookupFn: func(uid, code string) (*domain.CouponRecord, error) {
		switch {
		case uid == "u1" && code == rec.Code:
			return rec, nil
		case code == "BROKEN":
			return nil, errors.New("db down")
		}
		return nil, services.ErrCouponNotFound
	}}
	h := New(svc, nil, nil, nil, "")
	r := newTestRouter()
	r.GET("/coupons/:code", h.GetCoupon)

	w := doJSON(t, r, http.MethodGet, "/coupons/"+rec.Code, nil, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[domain.CouponRecord](t, w); got.Code != rec.Code || got.Status != domain.CouponUnredeemed {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Another user's coupon looks exactly like a missing one.
	w = doJSON(t, r, http.MethodGet, "/coupons/"+rec.Code, nil, map[string]string{"X-User-ID": "u2"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/coupons/BROKEN", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIssueCoupon_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusCreated, ""},
		{services.ErrDealNotFound, http.StatusNotFound, ErrCodeNotFound},
		{fmt.Errorf("issue: %w", services.ErrCodeTaken), http.StatusConflict, ErrCodeConflict},
		{services.ErrInvalidCode, http.StatusUnprocessableEntity, ErrCodeInvalidCode},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeIssueFailed},
	}
	for _, tc := range cases {
		var got services.IssueRequest
		svc := &stubCoupons{issueFn: func(req services.IssueRequest) (*domain.CouponRecord, bool, error) {
			got = req
			if tc.err != nil {
				return nil, false, tc.err
			}
			return &domain.CouponRecord{ID: "c1", Code: "NIKE-1", UserID: req.UserID, DealID: req.DealID, Status: domain.CouponUnredeemed}, true, nil
		}}
		h := New(nil, svc, nil, nil, "")
		r := newTestRouter()
		r.POST("/coupons", h.IssueCoupon)

		w := doJSON(t, r, http.MethodPost, "/coupons", IssueCouponRequest{DealID: " d1 ", Code: "NIKE-1"}, map[string]string{"X-User-ID": "u1"})
		if w.Code != tc.status {
			t.Fatalf("err %v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		if got.UserID != "u1" || got.DealID != "d1" || got.Code != "NIKE-1" {
			t.Fatalf("issue request = %+v", got)
		}
		if tc.code != "" {
			if er := decode[ErrorResponse](t, w); er.Code != tc.code {
				t.Fatalf("err %v: code = %q, want %q", tc.err, er.Code, tc.code)
			}
		}
	}
}

func TestIssueCoupon_RequiresDeal(t *testing.T) {
	h := New(nil, &stubCoupons{issueFn: func(services.IssueRequest) (*domain.CouponRecord, bool, error) {
		t.Fatalf("service must not be called")
		return nil, false, nil
	}}, nil, nil, "")
	r := newTestRouter()
	r.POST("/coupons", h.IssueCoupon)

	if w := doJSON(t, r, http.MethodPost, "/coupons", map[string]string{"code": "X"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}
