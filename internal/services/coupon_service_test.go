package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/ledger"
)

// stubDeals is an in-memory DealGetter.
type stubDeals map[string]domain.Deal

func (s stubDeals) Get(_ context.Context, id string) (*domain.Deal, error) {
	d, ok := s[id]
	if !ok {
		return nil, ErrDealNotFound
	}
	return &d, nil
}

var catalog = stubDeals{
	"d-nike":    {ID: "d-nike", Kind: domain.DealKindBrand, Title: "Nike Running Shoes", BrandName: "Nike", DiscountValue: "50% off", CouponCode: "nike50run"},
	"d-airpods": {ID: "d-airpods", Kind: domain.DealKindDiscount, Title: "AirPods Pro", StoreName: "Best Buy", DiscountValue: "$30 off", CouponCode: "AIRPODS30", ValidDays: 3},
	"d-plain":   {ID: "d-plain", Kind: domain.DealKindDiscount, Title: "Plain", DiscountValue: "10% off"},
}

func newCoupons(store ledger.Store) *CouponService {
	s := NewCouponService(store, catalog, 30*24*time.Hour)
	s.Now = fixedClock(testNow)
	return s
}

func TestIssue_SnapshotsDeal_AndAppliesTTL(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := newCoupons(store)

	rec, created, err := svc.Issue(context.Background(), IssueRequest{UserID: "u1", DealID: "d-nike"})
	if err != nil || !created {
		t.Fatalf("Issue: created=%v err=%v", created, err)
	}
	if !regexp.MustCompile(`^NIKE50RUN-[0-9A-F]{6}$`).MatchString(rec.Code) {
		t.Fatalf("unexpected generated code %q", rec.Code)
	}
	if rec.Status != domain.CouponUnredeemed || rec.RedemptionDate != nil {
		t.Fatalf("new coupon must be unredeemed: %+v", rec)
	}
	if rec.DealTitle != "Nike Running Shoes" || rec.BrandName != "Nike" || rec.DiscountValue != "50% off" {
		t.Fatalf("deal not snapshotted: %+v", rec)
	}
	if !rec.ExpiryDate.Equal(testNow.Add(30 * 24 * time.Hour)) {
		t.Fatalf("default TTL not applied: %v", rec.ExpiryDate)
	}

	got, err := store.FindByCode(context.Background(), rec.Code)
	if err != nil || got.UserID != "u1" {
		t.Fatalf("record not in ledger: %+v %v", got, err)
	}

	// Deal-specific validity wins over the TTL.
	ap, _, err := svc.Issue(context.Background(), IssueRequest{UserID: "u1", DealID: "d-airpods"})
	if err != nil {
		t.Fatalf("Issue airpods: %v", err)
	}
	if !ap.ExpiryDate.Equal(testNow.Add(3 * 24 * time.Hour)) {
		t.Fatalf("ValidDays not applied: %v", ap.ExpiryDate)
	}

	plain, _, err := svc.Issue(context.Background(), IssueRequest{UserID: "u1", DealID: "d-plain"})
	if err != nil || !regexp.MustCompile(`^CPN-`).MatchString(plain.Code) {
		t.Fatalf("fallback prefix: %+v %v", plain, err)
	}
}

func TestIssue_ExplicitCode_AndErrors(t *testing.T) {
	svc := newCoupons(ledger.NewMemoryStore())
	ctx := context.Background()

	rec, _, err := svc.Issue(ctx, IssueRequest{UserID: "u1", DealID: "d-nike", Code: " NIKE50RUN "})
	if err != nil || rec.Code != "NIKE50RUN" {
		t.Fatalf("explicit code: %+v %v", rec, err)
	}
	if _, _, err := svc.Issue(ctx, IssueRequest{UserID: "u2", DealID: "d-nike", Code: "NIKE50RUN"}); !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
	if _, _, err := svc.Issue(ctx, IssueRequest{UserID: "u1", DealID: "missing"}); !errors.Is(err, ErrDealNotFound) {
		t.Fatalf("expected ErrDealNotFound, got %v", err)
	}
	if _, _, err := svc.Issue(ctx, IssueRequest{UserID: "u1", DealID: "d-nike", Code: "BAD\x07"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestIssue_SourceRef_IsIdempotent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			svc := newCoupons(store)
			ctx := context.Background()
			req := IssueRequest{UserID: "u1", DealID: "d-nike", SourceRef: "cs_test_1"}

			first, created, err := svc.Issue(ctx, req)
			if err != nil || !created {
				t.Fatalf("first issue: %v %v", created, err)
			}
			second, created, err := svc.Issue(ctx, req)
			if err != nil || created {
				t.Fatalf("second issue must reuse: created=%v err=%v", created, err)
			}
			if second.Code != first.Code {
				t.Fatalf("expected same coupon, got %q and %q", first.Code, second.Code)
			}
		})
	}
}

func TestIssue_SourceRef_ConcurrentDeliveries(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := newCoupons(store)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		codes   = map[string]int{}
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, c, err := svc.Issue(context.Background(), IssueRequest{UserID: "u1", DealID: "d-nike", SourceRef: "cs_race"})
			if err != nil {
				t.Errorf("Issue: %v", err)
				return
			}
			mu.Lock()
			codes[rec.Code]++
			if c {
				created++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if created != 1 || len(codes) != 1 {
		t.Fatalf("expected one coupon for the session, created=%d codes=%v", created, codes)
	}
}

func TestIssue_PurchasesSharingABaseCode(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			svc := newCoupons(store)
			ctx := context.Background()
			shape := regexp.MustCompile(`^NIKE50RUN-[0-9A-F]{6}$`)

			codes := map[string]bool{}
			for _, session := range []string{"cs_a", "cs_b", "cs_c"} {
				rec, created, err := svc.Issue(ctx, IssueRequest{UserID: "buyer-" + session, DealID: "d-nike", Code: "NIKE50RUN", SourceRef: session})
				if err != nil || !created {
					t.Fatalf("%s: created=%v err=%v", session, created, err)
				}
				if !shape.MatchString(rec.Code) {
					t.Fatalf("%s: code %q must extend the shared base", session, rec.Code)
				}
				codes[rec.Code] = true
			}
			if len(codes) != 3 {
				t.Fatalf("each purchase needs its own code, got %v", codes)
			}
		})
	}
}

// collidingStore reports the first n inserts as duplicates, as if the
// generated code were already in the ledger.
type collidingStore struct {
	ledger.Store
	n, calls int
}

func (s *collidingStore) Issue(ctx context.Context, rec *domain.CouponRecord) error {
	s.calls++
	if s.calls <= s.n {
		return ledger.ErrDuplicate
	}
	return s.Store.Issue(ctx, rec)
}

func TestIssue_GeneratedCodeCollision(t *testing.T) {
	ctx := context.Background()

	store := &collidingStore{Store: ledger.NewMemoryStore(), n: 2}
	rec, created, err := newCoupons(store).Issue(ctx, IssueRequest{UserID: "u1", DealID: "d-nike", SourceRef: "cs_retry"})
	if err != nil || !created || store.calls != 3 {
		t.Fatalf("Issue = (%+v, %v, %v) after %d inserts", rec, created, err, store.calls)
	}

	stuck := &collidingStore{Store: ledger.NewMemoryStore(), n: maxIssueAttempts}
	_, _, err = newCoupons(stuck).Issue(ctx, IssueRequest{UserID: "u1", DealID: "d-nike", SourceRef: "cs_stuck"})
	if err == nil || errors.Is(err, ErrCodeTaken) || IsPermanent(err) {
		t.Fatalf("exhausted retries on a purchase must stay retryable, got %v", err)
	}
	if stuck.calls != maxIssueAttempts {
		t.Fatalf("inserts = %d, want %d", stuck.calls, maxIssueAttempts)
	}
}
