package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// memIdem is an in-memory idempotency store keyed by operator|route|key.
type memIdem struct {
	mu   sync.Mutex
	recs map[string]StoredResponse
	err  error
	seen []string
}

func newMemIdem() *memIdem { return &memIdem{recs: map[string]StoredResponse{}} }

func (m *memIdem) lookup(_ context.Context, operatorID, route, key string, _ time.Time) (*StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := operatorID + "|" + route + "|" + key
	m.seen = append(m.seen, id)
	if m.err != nil {
		return nil, m.err
	}
	if sr, ok := m.recs[id]; ok {
		return &sr, nil
	}
	return nil, nil
}

func (m *memIdem) save(_ context.Context, operatorID, route, key string, resp StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[operatorID+"|"+route+"|"+key] = resp
	return nil
}

// redeemRouter mounts a fake redemption endpoint that succeeds once and then
// reports the coupon as already redeemed, like the real ledger.
func redeemRouter(store *memIdem, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), IdempotencyValidator(IdempotencyOptions{}, store.lookup))
	r.POST("/redemptions", IdempotentReplay(store.save), func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		*calls++
		if *calls == 1 {
			c.JSON(http.StatusOK, gin.H{"type": "success", "echo": string(body)})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"type": "error", "error_code": "already-redeemed"})
	})
	return r
}

func scan(r http.Handler, operator, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/redemptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if operator != "" {
		req.Header.Set("X-User-ID", operator)
	}
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_RetryReplaysOriginalOutcome(t *testing.T) {
	store := newMemIdem()
	calls := 0
	r := redeemRouter(store, &calls)
	body := `{"code":"NIKE50RUN-3F9A1C"}`

	first := scan(r, "store-42", "scan-1", body)
	if first.Code != http.StatusOK || first.Header().Get(HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first: %d replayed=%q", first.Code, first.Header().Get(HeaderIdempotencyReplayed))
	}
	if !strings.Contains(first.Body.String(), `NIKE50RUN-3F9A1C`) {
		t.Fatalf("handler must still see the body after fingerprinting: %s", first.Body.String())
	}

	retry := scan(r, "store-42", "scan-1", body)
	if retry.Code != http.StatusOK || retry.Header().Get(HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("retry: %d %s", retry.Code, retry.Body.String())
	}
	if retry.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs:\n%s\n%s", first.Body.String(), retry.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}

	if w := scan(r, "store-42", "", body); w.Code != http.StatusConflict || calls != 2 {
		t.Fatalf("a scan without a key is a genuine repeat: %d calls=%d", w.Code, calls)
	}
}

func TestIdempotency_KeysAreScopedPerOperator(t *testing.T) {
	store := newMemIdem()
	calls := 0
	r := redeemRouter(store, &calls)

	scan(r, "store-42", "scan-1", `{}`)
	if w := scan(r, "store-7", "scan-1", `{}`); w.Header().Get(HeaderIdempotencyReplayed) != "" || calls != 2 {
		t.Fatalf("another operator's key must not replay: calls=%d", calls)
	}
	if got := store.seen[0]; got != "store-42|/redemptions|scan-1" {
		t.Fatalf("lookup identity = %q", got)
	}

	scan(r, "", "anon-1", `{}`)
	if got := store.seen[len(store.seen)-1]; got != AnonymousOperator+"|/redemptions|anon-1" {
		t.Fatalf("anonymous lookup identity = %q", got)
	}
}

func TestIdempotency_KeyReusedForDifferentRequest(t *testing.T) {
	store := newMemIdem()
	calls := 0
	r := redeemRouter(store, &calls)

	scan(r, "store-42", "scan-1", `{"code":"AAA"}`)
	w := scan(r, "store-42", "scan-1", `{"code":"BBB"}`)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), `"code":"idempotency_key_reused"`) {
		t.Fatalf("reused key: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"request_id"`) {
		t.Fatalf("error envelope should carry the request id: %s", w.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler must not run for a reused key, calls=%d", calls)
	}
}

func TestIdempotency_LegacyRecordWithoutFingerprintReplays(t *testing.T) {
	store := newMemIdem()
	store.recs["store-42|/redemptions|old"] = StoredResponse{Status: http.StatusOK, Body: []byte(`{"type":"success"}`)}
	calls := 0
	r := redeemRouter(store, &calls)

	w := scan(r, "store-42", "old", `{"code":"anything"}`)
	if w.Code != http.StatusOK || w.Body.String() != `{"type":"success"}` || calls != 0 {
		t.Fatalf("legacy replay: %d %s calls=%d", w.Code, w.Body.String(), calls)
	}
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemIdem()
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, store.lookup))
	r.POST("/redemptions", IdempotentReplay(store.save), func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"type": "error", "error_code": "store-unavailable"})
	})

	if w := scan(r, "store-42", "k", `{}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if len(store.recs) != 0 {
		t.Fatalf("5xx must not be stored: %v", store.recs)
	}
}

func TestIdempotency_LookupErrorIsAMiss(t *testing.T) {
	store := newMemIdem()
	store.err = errors.New("db down")
	calls := 0
	r := redeemRouter(store, &calls)

	if w := scan(r, "store-42", "k", `{}`); w.Code != http.StatusOK || calls != 1 {
		t.Fatalf("lookup failure must not block the request: %d calls=%d", w.Code, calls)
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"default charset", IdempotencyOptions{}, "has space"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
				t.Fatalf("%q: %d %s", tc.key, w.Code, w.Body.String())
			}
		})
	}
}

func TestIdempotencyValidator_OversizedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 8)
		c.Next()
	}, IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"code":"far too long"}`))
	req.Header.Set(HeaderIdempotencyKey, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIdempotencyValidator_ContextState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hit := &StoredResponse{Status: http.StatusOK, Body: []byte(`{}`)}
	var lookupAt time.Time
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Now: func() time.Time { return fixed }},
		func(_ context.Context, _, _, key string, now time.Time) (*StoredResponse, error) {
			lookupAt = now
			if key == "hit" {
				return hit, nil
			}
			return nil, nil
		}))
	r.POST("/x", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{"key": key, "has": ok, "replay": IsReplay(c), "bypass": IsRateBypass(c)})
	})

	for key, want := range map[string]string{
		"":     `{"bypass":false,"has":false,"key":"","replay":false}`,
		"miss": `{"bypass":false,"has":true,"key":"miss","replay":false}`,
		"hit":  `{"bypass":true,"has":true,"key":"hit","replay":true}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Body.String() != want {
			t.Errorf("key %q: %s, want %s", key, w.Body.String(), want)
		}
	}
	if !lookupAt.Equal(fixed) || lookupAt.Location() != time.UTC {
		t.Fatalf("lookup clock = %v, want %v in UTC", lookupAt, fixed)
	}
}

func TestOperatorID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if id, ok := OperatorID(c); ok || id != "" {
		t.Fatalf("no identity: %q %v", id, ok)
	}
	if got := OperatorOrAnonymous(c); got != AnonymousOperator {
		t.Fatalf("fallback = %q", got)
	}

	c.Request.Header.Set("X-User-ID", " store-7 ")
	if id, _ := OperatorID(c); id != "store-7" {
		t.Fatalf("header identity = %q", id)
	}

	c.Set("userID", 42)
	if id, _ := OperatorID(c); id != "store-7" {
		t.Fatalf("non-string context value must be ignored, got %q", id)
	}
	c.Set("userID", "auth-9")
	if id, _ := OperatorID(c); id != "auth-9" {
		t.Fatalf("authenticated identity must win, got %q", id)
	}
}
