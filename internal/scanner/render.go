package scanner

import (
	"fmt"
	"strings"
)

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

// outcomeColor picks the ANSI color for an outcome kind.
func outcomeColor(outcome string) string {
	switch outcome {
	case OutcomeSuccess:
		return ansiGreen
	case OutcomeValid:
		return ansiCyan
	case OutcomeAlreadyRedeemed:
		return ansiYellow
	case OutcomeStoreUnavailable, OutcomeUnreachable:
		return ansiMagenta
	default:
		return ansiRed
	}
}

// RenderLine formats an entry as a single status line:
//
//	15:04:05  SUCCESS           NIKE50RUN-3F9A1C  Nike | 50% off running shoes | Coupon redeemed successfully.
func RenderLine(e Entry, color bool) string {
	label := strings.ToUpper(e.Result.Outcome)
	if label == "" {
		label = "UNKNOWN"
	}
	if e.Result.Replayed {
		label += " (replay)"
	}

	parts := make([]string, 0, 3)
	if d := e.Result.DealDetails; d != nil {
		if d.BrandName != "" {
			parts = append(parts, d.BrandName)
		}
		if d.Title != "" {
			parts = append(parts, d.Title)
		}
	}
	if e.Result.Message != "" {
		parts = append(parts, e.Result.Message)
	}

	line := fmt.Sprintf("%s  %-17s %s  %s", e.At.Format("15:04:05"), label, e.Code, strings.Join(parts, " | "))
	line = strings.TrimRight(line, " ")
	if !color {
		return line
	}
	return outcomeColor(e.Result.Outcome) + line + ansiReset
}

// RenderHistory formats entries newest first, one line each.
func RenderHistory(entries []Entry, color bool) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(RenderLine(e, color))
		b.WriteByte('\n')
	}
	return b.String()
}
