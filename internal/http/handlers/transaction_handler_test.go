package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

func TestListTransactions_PageAndETag(t *testing.T) {
	newest := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubRedeem{
		versionFn: func(op string) (int64, *time.Time, error) {
			if op != "store-42" {
				t.Fatalf("operator = %q", op)
			}
			return 3, &newest, nil
		},
		txFn: func(op string, page, pageSize int) ([]domain.RedemptionTransaction, int64, error) {
			if page != 2 || pageSize != 2 {
				t.Fatalf("page args = (%d,%d)", page, pageSize)
			}
			return []domain.RedemptionTransaction{{ID: "t1", UserID: op, Code: "A", Outcome: domain.OutcomeSuccess, CreatedAt: newest}}, 3, nil
		},
	}
	h := New(svc, nil, nil, nil, "")
	r := newTestRouter()
	r.GET("/transactions", h.ListTransactions)

	hdr := map[string]string{"X-User-ID": "store-42"}
	w := doJSON(t, r, http.MethodGet, "/transactions?page=2&page_size=2", nil, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	resp := decode[ListTransactionsResponse](t, w)
	if len(resp.Transactions) != 1 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 || resp.Pagination.HasNext {
		t.Fatalf("unexpected response: %+v", resp)
	}

	hdr["If-None-Match"] = etag
	w = doJSON(t, r, http.MethodGet, "/transactions?page=2&page_size=2", nil, hdr)
	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}
	if svc.txCalls != 1 {
		t.Fatalf("304 must not load the page, calls = %d", svc.txCalls)
	}
}

func TestListTransactions_EmptyAndError(t *testing.T) {
	svc := &stubRedeem{txFn: func(string, int, int) ([]domain.RedemptionTransaction, int64, error) {
		return nil, 0, nil
	}}
	h := New(svc, nil, nil, nil, "")
	r := newTestRouter()
	r.GET("/transactions", h.ListTransactions)

	w := doJSON(t, r, http.MethodGet, "/transactions", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("ETag") != "" {
		t.Fatalf("status = %d etag = %q", w.Code, w.Header().Get("ETag"))
	}
	if resp := decode[ListTransactionsResponse](t, w); resp.Transactions == nil {
		t.Fatalf("transactions must encode as []")
	}

	svc.txFn = func(string, int, int) ([]domain.RedemptionTransaction, int64, error) {
		return nil, 0, errors.New("boom")
	}
	w = doJSON(t, r, http.MethodGet, "/transactions", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if er := decode[ErrorResponse](t, w); er.Code != ErrCodeListFailed {
		t.Fatalf("code = %q", er.Code)
	}
}
