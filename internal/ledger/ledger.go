// Package ledger is the authoritative store of coupon records and the
// append-only log of redemption attempts.
//
// Every status change goes through Store.CompareAndSwapStatus. Callers never
// read a record, decide, and then write it back; the store applies the
// transition only if the record is still in the expected state, so two
// concurrent redemptions of one code can produce at most one success.
//
// Two implementations exist: GormStore (SQLite or Postgres) and MemoryStore
// (tests and local mock mode). Business logic is written against Store and
// never branches on which one it got.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

var (
	// ErrNotFound is returned when no record matches the code.
	ErrNotFound = errors.New("ledger: record not found")
	// ErrDuplicate is returned by Issue when the code or source reference is taken.
	ErrDuplicate = errors.New("ledger: duplicate record")
)

// Swap describes one conditional status change.
//
// Record, when non-nil, is appended to the transaction log in the same unit
// of work as the status change and only if the change was applied.
type Swap struct {
	Code         string
	Expected     domain.CouponStatus
	Next         domain.CouponStatus
	At           time.Time
	CustomerName *string
	Record       *domain.RedemptionTransaction
}

// Store is the persistence contract of the coupon ledger.
type Store interface {
	// FindByCode returns the record with the exact code, or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*domain.CouponRecord, error)

	// Issue creates a new unredeemed record at purchase time.
	Issue(ctx context.Context, rec *domain.CouponRecord) error

	// FindBySourceRef returns the record issued for an external purchase
	// reference, or ErrNotFound.
	FindBySourceRef(ctx context.Context, ref string) (*domain.CouponRecord, error)

	// CompareAndSwapStatus applies s if the record is currently in
	// s.Expected. It reports whether this call performed the change.
	// A missing code is not an error: it reports false.
	CompareAndSwapStatus(ctx context.Context, s Swap) (bool, error)

	// AppendTransaction adds an entry to the log.
	AppendTransaction(ctx context.Context, tx *domain.RedemptionTransaction) error

	// ListTransactions returns userID's log entries, most recent first.
	ListTransactions(ctx context.Context, userID string, offset, limit int) ([]domain.RedemptionTransaction, error)

	// CountTransactions returns the number of log entries for userID.
	CountTransactions(ctx context.Context, userID string) (int64, error)

	// ListExpirable returns up to limit unredeemed records whose expiry is
	// strictly before now.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.CouponRecord, error)
}

// StatsStore is implemented by stores that can summarize a user's log (entry
// count and newest timestamp) in one query.
type StatsStore interface {
	TransactionsStats(ctx context.Context, userID string) (count int64, latest *time.Time, err error)
}
