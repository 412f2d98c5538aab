package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

func TestGetIdempotency_BlankRouteOrKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	if rec, err := GetIdempotency(context.Background(), db, "u1", "   ", "k1", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank route, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", "/api/v1/redemptions", "", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:         "expired",
		OperatorID: "u1",
		Route:      "/api/v1/redemptions",
		Key:        "k1",
		Status:     200,
		Body:       `{}`,
		CreatedAt:  now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "u1", "/api/v1/redemptions", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, "u1", "/api/v1/redemptions", "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestCreateIdempotency_RoundTrip_AndDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	route := "/api/v1/redemptions"
	ttl := 90 * time.Minute
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "u9", route, "k9", "", 409, []byte(`{"type":"error"}`), ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.Route != route || rec.Status != 409 || rec.Body != `{"type":"error"}` {
		t.Fatalf("unexpected record: %+v", rec)
	}
	// Loose bound to avoid timing flakes.
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	got, err := GetIdempotency(ctx, db, "u9", route, "k9", time.Now().UTC())
	if err != nil || got.Body != rec.Body || got.Status != 409 {
		t.Fatalf("readback mismatch: rec=%+v err=%v", got, err)
	}

	if _, err := CreateIdempotency(ctx, db, "u9", route, "k9", "", 200, []byte(`{}`), ttl); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same key on another route is a different tuple.
	if _, err := CreateIdempotency(ctx, db, "u9", "/api/v1/coupons", "k9", "", 201, []byte(`{}`), ttl); err != nil {
		t.Fatalf("expected distinct route to be accepted, got %v", err)
	}
}

func TestCreateIdempotency_ReplacesExpiredRecord(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	route := "/api/v1/redemptions"
	now := time.Now().UTC()

	stale := domain.NewIdempotency("store-42", route, "scan-1", "old", 200, []byte(`{"old":true}`), now.Add(-3*time.Hour), time.Hour)
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := CreateIdempotency(ctx, db, "store-42", route, "scan-1", "new", 409, []byte(`{"new":true}`), time.Hour)
	if err != nil {
		t.Fatalf("an expired record must not block the key: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "store-42", route, "scan-1", time.Now().UTC())
	if err != nil || got.ID != rec.ID || got.RequestHash != "new" || got.Body != `{"new":true}` {
		t.Fatalf("lookup after replace = (%+v, %v)", got, err)
	}

	var n int64
	db.Model(&domain.Idempotency{}).Where("key = ?", "scan-1").Count(&n)
	if n != 1 {
		t.Fatalf("rows for the key = %d, want 1", n)
	}

	// The fresh record is live, so a second save still loses.
	if _, err := CreateIdempotency(ctx, db, "store-42", route, "scan-1", "x", 200, nil, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

// Generic DB error path: attempt insert without migrating the table.
func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	_, err := CreateIdempotency(context.Background(), db, "uX", "sX", "kX", "", 200, nil, time.Minute)
	if err == nil {
		t.Fatalf("expected error when table is missing")
	}
	if err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got ErrDuplicate")
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()
	for i, exp := range []time.Time{now.Add(-time.Minute), now.Add(time.Hour)} {
		rec := &domain.Idempotency{
			ID: string(rune('a' + i)), OperatorID: "u", Route: "s", Key: string(rune('a' + i)),
			Status: 200, Body: "{}", CreatedAt: now, ExpiresAt: exp,
		}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, err := PurgeExpiredIdempotency(context.Background(), db, now)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 purged row, got %d (%v)", n, err)
	}
}
