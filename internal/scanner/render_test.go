package scanner

import (
	"strings"
	"testing"
	"time"
)

func TestRenderLine_ColorsByOutcome(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	cases := []struct {
		outcome string
		color   string
	}{
		{OutcomeSuccess, ansiGreen},
		{OutcomeValid, ansiCyan},
		{OutcomeAlreadyRedeemed, ansiYellow},
		{OutcomeExpired, ansiRed},
		{OutcomeInvalid, ansiRed},
		{OutcomeNotFound, ansiRed},
		{OutcomeStoreUnavailable, ansiMagenta},
		{OutcomeUnreachable, ansiMagenta},
	}
	for _, tc := range cases {
		line := RenderLine(Entry{At: at, Code: "X1", Result: Result{Outcome: tc.outcome}}, true)
		if !strings.HasPrefix(line, tc.color) || !strings.HasSuffix(line, ansiReset) {
			t.Fatalf("%s: line %q", tc.outcome, line)
		}
	}
}

func TestRenderLine_Plain(t *testing.T) {
	e := Entry{
		At:   time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Code: "NIKE50RUN-3F9A1C",
		Result: Result{
			Outcome:     OutcomeSuccess,
			Message:     "Coupon redeemed successfully.",
			DealDetails: &DealDetails{BrandName: "Nike", Title: "50% off running shoes"},
			Replayed:    true,
		},
	}
	got := RenderLine(e, false)
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("plain line has escapes: %q", got)
	}
	for _, want := range []string{"15:04:05", "SUCCESS (replay)", "NIKE50RUN-3F9A1C", "Nike | 50% off running shoes | Coupon redeemed successfully."} {
		if !strings.Contains(got, want) {
			t.Fatalf("line %q missing %q", got, want)
		}
	}

	h := RenderHistory([]Entry{e, e}, false)
	if strings.Count(h, "\n") != 2 {
		t.Fatalf("history = %q", h)
	}
}
