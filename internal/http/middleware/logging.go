// Package middleware holds the Gin middleware of the deals API: request
// correlation, access logging, idempotent replay, rate limiting, metrics and
// response hardening.
//
// Install RequestID before RedactingLogger and Recovery so both carry the
// request ID.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	outcomeKey      = "redemption.outcome"
)

// requestIDPattern bounds what a caller may supply as X-Request-ID; anything
// else is replaced so log lines stay greppable.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

// RequestID reuses the caller's X-Request-ID when it is well formed and
// otherwise mints a UUID. The ID is echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// Recovery converts a panic into a 500 error envelope and logs the stack.
// A response that was already partly written only gets its status.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger RedactingLogger scoped to this request,
// falling back to the global logger.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if lg, ok := c.Value(loggerKey).(*zerolog.Logger); ok {
		return lg
	}
	return &log.Logger
}

// SetOutcome records the redemption outcome kind so the access log can
// report it and treat rejected scans as routine.
func SetOutcome(c *gin.Context, kind string) {
	c.Set(outcomeKey, kind)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
