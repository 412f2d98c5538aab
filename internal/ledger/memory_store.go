package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// MemoryStore is an in-process Store guarded by a single mutex. It backs
// tests and LEDGER_BACKEND=memory.
type MemoryStore struct {
	mu      sync.Mutex
	coupons map[string]*domain.CouponRecord // by code
	sources map[string]string               // source ref -> code
	txs     []domain.RedemptionTransaction  // append order
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coupons: make(map[string]*domain.CouponRecord),
		sources: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) FindByCode(_ context.Context, code string) (*domain.CouponRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCoupon(rec), nil
}

func (m *MemoryStore) FindBySourceRef(_ context.Context, ref string) (*domain.CouponRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.sources[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCoupon(m.coupons[code]), nil
}

func (m *MemoryStore) Issue(_ context.Context, rec *domain.CouponRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coupons[rec.Code]; ok {
		return ErrDuplicate
	}
	if rec.SourceRef != nil {
		if _, ok := m.sources[*rec.SourceRef]; ok {
			return ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.PurchaseDate.IsZero() {
		rec.PurchaseDate = now
	}
	if rec.Status == "" {
		rec.Status = domain.CouponUnredeemed
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	m.coupons[rec.Code] = cloneCoupon(rec)
	if rec.SourceRef != nil {
		m.sources[*rec.SourceRef] = rec.Code
	}
	return nil
}

func (m *MemoryStore) CompareAndSwapStatus(_ context.Context, sw Swap) (bool, error) {
	if !domain.CanTransition(sw.Expected, sw.Next) {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.coupons[sw.Code]
	if !ok || rec.Status != sw.Expected {
		return false, nil
	}
	rec.Status = sw.Next
	rec.UpdatedAt = sw.At
	if sw.Next == domain.CouponRedeemed {
		at := sw.At
		rec.RedemptionDate = &at
		rec.RedeemedBy = cloneString(sw.CustomerName)
	}
	if sw.Record != nil {
		m.appendLocked(sw.Record)
	}
	return true, nil
}

func (m *MemoryStore) AppendTransaction(_ context.Context, tx *domain.RedemptionTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(tx)
	return nil
}

func (m *MemoryStore) appendLocked(tx *domain.RedemptionTransaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	cp := *tx
	cp.CustomerName = cloneString(tx.CustomerName)
	m.txs = append(m.txs, cp)
}

func (m *MemoryStore) ListTransactions(_ context.Context, userID string, offset, limit int) ([]domain.RedemptionTransaction, error) {
	m.mu.Lock()
	var mine []domain.RedemptionTransaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].UserID == userID {
			mine = append(mine, m.txs[i])
		}
	}
	m.mu.Unlock()

	// Newest first; ties keep reverse append order.
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })

	if offset >= len(mine) {
		return []domain.RedemptionTransaction{}, nil
	}
	end := len(mine)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return mine[offset:end], nil
}

func (m *MemoryStore) CountTransactions(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.txs {
		if m.txs[i].UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListExpirable(_ context.Context, now time.Time, limit int) ([]domain.CouponRecord, error) {
	m.mu.Lock()
	var out []domain.CouponRecord
	for _, rec := range m.coupons {
		if rec.Status == domain.CouponUnredeemed && rec.ExpiryDate.Before(now) {
			out = append(out, *cloneCoupon(rec))
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneCoupon(c *domain.CouponRecord) *domain.CouponRecord {
	cp := *c
	if c.RedemptionDate != nil {
		t := *c.RedemptionDate
		cp.RedemptionDate = &t
	}
	cp.RedeemedBy = cloneString(c.RedeemedBy)
	cp.SourceRef = cloneString(c.SourceRef)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
