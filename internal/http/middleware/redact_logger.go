package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-deals-backend/internal/observability"
)

// RedactOptions extends the built-in masking of RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are fully masked in addition to Authorization, Cookie,
	// Set-Cookie and Stripe-Signature. Case-insensitive.
	MaskHeaders []string
	// MaskParams are query parameters whose values are fully masked in
	// addition to "code" and "coupon", which carry redeemable coupon codes.
	MaskParams []string
}

var (
	// UUIDs go first so the phone pattern cannot match their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger writes one access log line per request with PII scrubbed
// from the query string and headers. Bodies are never logged, and coupon
// codes in routes appear only as the pattern (/coupons/:code).
//
// It also installs the request-scoped logger used by LoggerFrom and
// zerolog.Ctx. When a handler called SetOutcome, the outcome is logged and a
// 4xx is logged at info: a rejected scan is a normal business result. A 5xx
// is always an error.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization":    {},
		"cookie":           {},
		"set-cookie":       {},
		"stripe-signature": {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	params := []string{"code", "coupon"}
	for _, p := range opts.MaskParams {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, regexp.QuoteMeta(p))
		}
	}
	paramRE := regexp.MustCompile(`(?i)(^|&)(` + strings.Join(params, "|") + `)=[^&]*`)

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		lc := log.With().
			Str("request_id", asString(c.Value(requestIDKey))).
			Str("path", path)
		if tid := observability.TraceID(c.Request.Context()); tid != "" {
			lc = lc.Str("trace_id", tid)
		}
		scoped := lc.Logger()
		c.Set(loggerKey, &scoped)
		c.Request = c.Request.WithContext(scoped.WithContext(c.Request.Context()))

		c.Next()

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}
		status := c.Writer.Status()
		outcome := asString(c.Value(outcomeKey))

		ev := accessLevel(status, outcome != "")
		if outcome != "" {
			ev = ev.Str("outcome", outcome)
		}
		ev.Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", scrub(paramRE.ReplaceAllString(c.Request.URL.RawQuery, "$1$2=[REDACTED]"))).
			Str("operator", scrub(c.GetHeader("X-User-ID"))).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders(c.Request.Header, maskHeaders)).
			Msg("http_request")
	}
}

func accessLevel(status int, businessOutcome bool) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest && !businessOutcome:
		return log.Warn()
	default:
		return log.Info()
	}
}

func safeHeaders(h http.Header, mask map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := mask[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}
