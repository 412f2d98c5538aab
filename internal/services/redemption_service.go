// Package services – RedemptionService
//
// This file implements the redemption core: Validate classifies a scanned code
// against the ledger without writing, Redeem moves a valid coupon to redeemed
// through the ledger's compare-and-swap entry point, and Scan chains the two
// and records the attempt in the transaction log.
//
// Every path returns an Outcome value. Store failures become
// KindStoreUnavailable; nothing is returned as an error across this boundary.
//
// Observability: public methods are OpenTelemetry-instrumented and every
// classified outcome is counted in redemption_outcomes_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/ledger"
	"github.com/tbourn/go-deals-backend/internal/observability"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

// MaxCodeLen caps accepted scan payloads, in runes.
const MaxCodeLen = 128

// RedemptionService validates and redeems coupons against a ledger.Store.
type RedemptionService struct {
	Store ledger.Store

	// RecordNotFound persists unknown codes as "invalid" transactions.
	RecordNotFound bool

	// CustomerNameMaxLen caps stored customer names by rune length.
	CustomerNameMaxLen int
	// NameLocale drives title-casing of customer names.
	NameLocale language.Tag

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewRedemptionService constructs a RedemptionService with defaults.
func NewRedemptionService(store ledger.Store, recordNotFound bool) *RedemptionService {
	return &RedemptionService{
		Store:              store,
		RecordNotFound:     recordNotFound,
		CustomerNameMaxLen: 64,
		NameLocale:         language.Und,
		Now:                func() time.Time { return time.Now().UTC() },
	}
}

// Validate classifies code without mutating the ledger.
func (s *RedemptionService) Validate(ctx context.Context, code string) Outcome {
	ctx, span := otel.Tracer("services/RedemptionService").Start(ctx, "Validate")
	defer span.End()

	out := s.classify(ctx, code)
	s.observe(span, out)
	return out
}

// Redeem transitions rec from unredeemed to redeemed on behalf of the
// operator operatorID. rec is normally the Record of a Valid outcome.
//
// The success transaction is appended in the same unit of work as the status
// change. A lost race is reported as AlreadyRedeemed (or Expired when the
// sweeper got there first); it never yields a second success.
func (s *RedemptionService) Redeem(ctx context.Context, operatorID string, rec *domain.CouponRecord, customerName string) Outcome {
	ctx, span := otel.Tracer("services/RedemptionService").Start(ctx, "Redeem",
		trace.WithAttributes(attribute.String("user.id", operatorID)),
	)
	defer span.End()

	out := s.redeem(ctx, operatorID, rec, customerName)
	s.observe(span, out)
	return out
}

// Scan validates code and, when valid, redeems it. Non-success outcomes are
// written to the transaction log (see recordAttempt).
func (s *RedemptionService) Scan(ctx context.Context, operatorID, code, customerName string) Outcome {
	ctx, span := otel.Tracer("services/RedemptionService").Start(ctx, "Scan",
		trace.WithAttributes(attribute.String("user.id", operatorID)),
	)
	defer span.End()

	out := s.classify(ctx, code)
	if out.Kind == KindValid {
		out = s.redeem(ctx, operatorID, out.Record, customerName)
	}
	s.recordAttempt(ctx, operatorID, out)
	s.observe(span, out)
	return out
}

// Transactions returns a page of the operator's transaction log, most recent first.
func (s *RedemptionService) Transactions(ctx context.Context, operatorID string, page, pageSize int) ([]domain.RedemptionTransaction, int64, error) {
	ctx, span := otel.Tracer("services/RedemptionService").Start(ctx, "Transactions",
		trace.WithAttributes(
			attribute.String("user.id", operatorID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	offset, limit := utils.Window(page, pageSize, 20)
	total, err := s.Store.CountTransactions(ctx, operatorID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.RedemptionTransaction{}, 0, nil
	}
	items, err := s.Store.ListTransactions(ctx, operatorID, offset, limit)
	return items, total, err
}

// TransactionsVersion summarizes the operator's log as (count, newest
// timestamp). The log is append-only, so the pair changes whenever any page
// of Transactions could change.
func (s *RedemptionService) TransactionsVersion(ctx context.Context, operatorID string) (int64, *time.Time, error) {
	if st, ok := s.Store.(ledger.StatsStore); ok {
		return st.TransactionsStats(ctx, operatorID)
	}
	total, err := s.Store.CountTransactions(ctx, operatorID)
	if err != nil || total == 0 {
		return 0, nil, err
	}
	newest, err := s.Store.ListTransactions(ctx, operatorID, 0, 1)
	if err != nil || len(newest) == 0 {
		return total, nil, err
	}
	return total, &newest[0].CreatedAt, nil
}

// Lookup returns the ledger record for code when it belongs to userID.
func (s *RedemptionService) Lookup(ctx context.Context, userID, code string) (*domain.CouponRecord, error) {
	rec, err := s.Store.FindByCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrCouponNotFound
	}
	return rec, nil
}

func (s *RedemptionService) classify(ctx context.Context, raw string) Outcome {
	now := s.Now()
	code, ok := normalizeCode(raw)
	if !ok {
		return Outcome{Kind: KindInvalid, Code: code, At: now}
	}

	rec, err := s.Store.FindByCode(ctx, code)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return Outcome{Kind: KindNotFound, Code: code, At: now}
	case err != nil:
		return Outcome{Kind: KindStoreUnavailable, Code: code, At: now, Err: err}
	}
	return Outcome{Kind: classifyRecord(rec, now), Code: code, Record: rec, At: now}
}

// classifyRecord applies the redeemed-first rule: a redeemed record is
// AlreadyRedeemed whatever its expiry; expiry only matters while unredeemed.
func classifyRecord(rec *domain.CouponRecord, now time.Time) OutcomeKind {
	switch {
	case rec.Status == domain.CouponRedeemed:
		return KindAlreadyRedeemed
	case rec.Status == domain.CouponExpired || rec.ExpiredAt(now):
		return KindExpired
	case rec.Status == domain.CouponUnredeemed:
		return KindValid
	}
	return KindInvalid
}

func (s *RedemptionService) redeem(ctx context.Context, operatorID string, rec *domain.CouponRecord, customerName string) Outcome {
	now := s.Now()
	if rec == nil {
		return Outcome{Kind: KindInvalid, At: now}
	}
	if kind := classifyRecord(rec, now); kind != KindValid {
		return Outcome{Kind: kind, Code: rec.Code, Record: rec, At: now}
	}

	name := s.normalizeCustomerName(customerName)
	tx := &domain.RedemptionTransaction{
		UserID:          operatorID,
		Code:            rec.Code,
		DealTitle:       rec.DealTitle,
		DiscountDisplay: rec.DiscountValue,
		CustomerName:    name,
		Outcome:         domain.OutcomeSuccess,
		CreatedAt:       now,
	}
	won, err := s.Store.CompareAndSwapStatus(ctx, ledger.Swap{
		Code:         rec.Code,
		Expected:     domain.CouponUnredeemed,
		Next:         domain.CouponRedeemed,
		At:           now,
		CustomerName: name,
		Record:       tx,
	})
	if err != nil {
		return Outcome{Kind: KindStoreUnavailable, Code: rec.Code, Record: rec, At: now, Err: err}
	}
	if won {
		done := *rec
		done.Status = domain.CouponRedeemed
		done.RedemptionDate = &now
		done.RedeemedBy = name
		done.UpdatedAt = now
		return Outcome{Kind: KindSuccess, Code: rec.Code, Record: &done, At: now}
	}

	// Lost the race: report what the winner left behind.
	cur, err := s.Store.FindByCode(ctx, rec.Code)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return Outcome{Kind: KindNotFound, Code: rec.Code, At: now}
	case err != nil:
		return Outcome{Kind: KindStoreUnavailable, Code: rec.Code, Record: rec, At: now, Err: err}
	}
	switch cur.Status {
	case domain.CouponRedeemed:
		return Outcome{Kind: KindAlreadyRedeemed, Code: rec.Code, Record: cur, At: now}
	case domain.CouponExpired:
		return Outcome{Kind: KindExpired, Code: rec.Code, Record: cur, At: now}
	}
	return Outcome{
		Kind: KindStoreUnavailable, Code: rec.Code, Record: cur, At: now,
		Err: fmt.Errorf("status swap for %q lost but record is still %s", rec.Code, cur.Status),
	}
}

// recordAttempt logs the scan and writes the non-success outcomes that the
// success path did not already append. Blank input is never persisted and
// unknown codes only when RecordNotFound is set.
func (s *RedemptionService) recordAttempt(ctx context.Context, operatorID string, out Outcome) {
	lg := loggerFrom(ctx)
	ev := lg.Info()
	if out.Kind == KindStoreUnavailable {
		ev = lg.Error().Err(out.Err)
	} else if !out.OK() {
		ev = lg.Warn()
	}
	ev.Str("code", out.Code).Str("outcome", string(out.Kind)).Str("user_id", operatorID).Msg("redemption attempt")

	var outcome domain.TransactionOutcome
	switch out.Kind {
	case KindAlreadyRedeemed, KindExpired:
		outcome, _ = out.Kind.txOutcome()
	case KindNotFound:
		if !s.RecordNotFound {
			return
		}
		outcome = domain.OutcomeInvalid
	default:
		return
	}

	tx := &domain.RedemptionTransaction{
		UserID:    operatorID,
		Code:      out.Code,
		Outcome:   outcome,
		CreatedAt: out.At,
	}
	if out.Record != nil {
		tx.DealTitle = out.Record.DealTitle
		tx.DiscountDisplay = out.Record.DiscountValue
	}
	if err := s.Store.AppendTransaction(ctx, tx); err != nil {
		lg.Error().Err(err).Str("code", out.Code).Msg("append redemption transaction")
	}
}

func (s *RedemptionService) observe(span trace.Span, out Outcome) {
	span.SetAttributes(
		attribute.String("coupon.code", out.Code),
		attribute.String("redemption.outcome", string(out.Kind)),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "store unavailable")
	}
	observability.RedemptionOutcomes.WithLabelValues(string(out.Kind)).Inc()
}

// normalizeCode trims the scan payload and rejects blank, oversized, or
// control-character input. Case is preserved: lookups are exact.
func normalizeCode(raw string) (string, bool) {
	code := strings.TrimSpace(raw)
	if utf8.RuneCountInString(code) > MaxCodeLen {
		return string([]rune(code)[:MaxCodeLen]), false
	}
	if code == "" || !utf8.ValidString(code) {
		return code, false
	}
	for _, r := range code {
		if unicode.IsControl(r) {
			return code, false
		}
	}
	return code, true
}

// normalizeCustomerName collapses whitespace, title-cases and clips the name.
// Blank input yields nil.
func (s *RedemptionService) normalizeCustomerName(name string) *string {
	name = nameSpaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" {
		return nil
	}
	name = cases.Title(s.NameLocale).String(name)
	if s.CustomerNameMaxLen > 0 && utf8.RuneCountInString(name) > s.CustomerNameMaxLen {
		name = string([]rune(name)[:s.CustomerNameMaxLen])
	}
	return &name
}

var nameSpaceRE = regexp.MustCompile(`\s+`)
