// Package services – DealService
//
// DealService serves the deal catalog: paginated listing, lookup by id, and
// keyword search over an in-memory weighted term index (internal/search)
// built from the catalog rows. A deal scores the weighted share of query terms
// it contains. The index is rebuilt by Reload, typically after seeding.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
	"github.com/tbourn/go-deals-backend/internal/search"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

// DealHit is one search result.
type DealHit struct {
	Deal  domain.Deal `json:"deal"`
	Score float64     `json:"score"`
}

// DealService provides catalog operations.
type DealService struct {
	DB *gorm.DB

	mu    sync.RWMutex
	index search.Index
}

// NewDealService constructs a DealService with an empty index. Call Reload
// to index the current catalog.
func NewDealService(db *gorm.DB) *DealService {
	return &DealService{DB: db, index: search.NewIndex(nil)}
}

// Reload rebuilds the search index from the deals table and returns how many
// deals were indexed.
func (s *DealService) Reload(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("services/DealService").Start(ctx, "Reload")
	defer span.End()

	deals, err := repo.ListAllDeals(ctx, s.DB)
	if err != nil {
		return 0, err
	}
	docs := make([]search.Document, 0, len(deals))
	for _, d := range deals {
		docs = append(docs, dealDocument(d))
	}
	idx := search.NewIndex(docs, search.WithStopwords(search.DefaultStopwords), search.WithPrefixMatch(3))

	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("deals.indexed", idx.Len()))
	return idx.Len(), nil
}

// ListPage returns a page of deals, optionally filtered by kind.
func (s *DealService) ListPage(ctx context.Context, kind string, page, pageSize int) ([]domain.Deal, int64, error) {
	ctx, span := otel.Tracer("services/DealService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("deal.kind", kind),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" && kind != domain.DealKindBrand && kind != domain.DealKindDiscount {
		return nil, 0, ErrInvalidKind
	}
	offset, limit := utils.Window(page, pageSize, 20)

	total, err := repo.CountDeals(ctx, s.DB, kind)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Deal{}, 0, nil
	}
	items, err := repo.ListDealsPage(ctx, s.DB, kind, offset, limit)
	return items, total, err
}

// Version summarizes the catalog as (count, newest UpdatedAt) for
// conditional responses.
func (s *DealService) Version(ctx context.Context) (int64, *time.Time, error) {
	return repo.DealsStats(ctx, s.DB)
}

// Get returns one deal or ErrDealNotFound.
func (s *DealService) Get(ctx context.Context, id string) (*domain.Deal, error) {
	d, err := repo.GetDeal(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDealNotFound
	}
	return d, err
}

// Search returns up to k deals matching q, best match first.
func (s *DealService) Search(ctx context.Context, q string, k int) ([]DealHit, error) {
	ctx, span := otel.Tracer("services/DealService").Start(ctx, "Search",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("k", k)),
	)
	defer span.End()

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 || k > 50 {
		k = 10
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	results := idx.TopK(q, k)
	hits := make([]DealHit, 0, len(results))
	for _, r := range results {
		d, err := repo.GetDeal(ctx, s.DB, r.ID)
		if errors.Is(err, repo.ErrNotFound) {
			// Deleted since the last Reload.
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, DealHit{Deal: *d, Score: r.Score})
	}
	return hits, nil
}

// dealDocument weighs what shoppers search by: the title and brand first,
// the store next, then the fine print.
func dealDocument(d domain.Deal) search.Document {
	return search.Document{ID: d.ID, Fields: []search.Field{
		{Text: d.Title, Weight: 3},
		{Text: d.BrandName, Weight: 3},
		{Text: d.StoreName, Weight: 2},
		{Text: d.CouponCode, Weight: 2},
		{Text: d.DiscountValue, Weight: 1},
		{Text: d.Description, Weight: 1},
	}}
}
