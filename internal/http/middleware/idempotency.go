package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// Idempotency headers. A client sends HeaderIdempotencyKey on a retryable
// write; a response served from the stored record carries
// HeaderIdempotencyReplayed: true.
const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotency-Replayed"
)

const (
	ctxKeyIdemKey         = "idem.key"
	ctxKeyIdemFingerprint = "idem.fingerprint"
	ctxKeyIdemReplay      = "idem.replay"
	ctxKeyRateBypass      = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// StoredResponse is a response recorded under an idempotency key.
// Fingerprint identifies the request that produced it.
type StoredResponse struct {
	Status      int
	Body        []byte
	Fingerprint string
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts key characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Now is the clock handed to the lookup; nil means time.Now.
	Now func() time.Time
}

// IdempotencyLookup returns the response stored for (operatorID, route, key)
// that is still live at now, or nil. route is the matched route pattern,
// e.g. "/api/v1/redemptions".
type IdempotencyLookup func(ctx context.Context, operatorID, route, key string, now time.Time) (*StoredResponse, error)

// IdempotencySave stores the response produced for (operatorID, route, key).
type IdempotencySave func(ctx context.Context, operatorID, route, key string, resp StoredResponse) error

// GetIdempotencyKey returns the validated key of the request, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	k := c.GetString(ctxKeyIdemKey)
	return k, k != ""
}

// IsReplay reports whether a stored response was found for this request.
func IsReplay(c *gin.Context) bool {
	_, ok := storedReplay(c)
	return ok
}

func storedReplay(c *gin.Context) (*StoredResponse, bool) {
	v, _ := c.Get(ctxKeyIdemReplay)
	sr, _ := v.(*StoredResponse)
	return sr, sr != nil
}

// IdempotencyValidator checks the Idempotency-Key header and looks up a
// stored response for it. Requests without the header pass untouched.
//
//   - a malformed key is rejected with 400 bad_idempotency_key
//   - a key already used for a different request body is rejected with
//     422 idempotency_key_reused
//   - a hit marks the request as a replay and exempts it from rate limiting
//
// Lookup errors are logged and treated as a miss.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		fp, err := fingerprint(c)
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				abortJSON(c, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
				return
			}
			abortJSON(c, http.StatusBadRequest, "bad_request", "unreadable request body")
			return
		}
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemFingerprint, fp)

		if lookup != nil {
			sr, err := lookup(c.Request.Context(), OperatorOrAnonymous(c), idemRoute(c), key, now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if sr != nil {
				if sr.Fingerprint != "" && sr.Fingerprint != fp {
					abortJSON(c, http.StatusUnprocessableEntity, "idempotency_key_reused",
						"Idempotency-Key was already used for a different request")
					return
				}
				c.Set(ctxKeyIdemReplay, sr)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// IdempotentReplay answers a replay with the stored response, and otherwise
// stores the handler's response under the request's key. 5xx responses are
// not stored so the client may retry them. Mount it per route, after
// IdempotencyValidator.
func IdempotentReplay(save IdempotencySave) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok {
			c.Next()
			return
		}
		if sr, ok := storedReplay(c); ok {
			c.Header(HeaderIdempotencyReplayed, "true")
			c.Data(sr.Status, "application/json; charset=utf-8", sr.Body)
			c.Abort()
			return
		}

		tee := &teeWriter{ResponseWriter: c.Writer}
		c.Writer = tee
		c.Next()

		status := tee.Status()
		if save == nil || status >= http.StatusInternalServerError || tee.buf.Len() == 0 {
			return
		}
		resp := StoredResponse{
			Status:      status,
			Body:        bytes.Clone(tee.buf.Bytes()),
			Fingerprint: c.GetString(ctxKeyIdemFingerprint),
		}
		if err := save(c.Request.Context(), OperatorOrAnonymous(c), idemRoute(c), key, resp); err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}
}

// fingerprint hashes the method, route and body of the request, restoring the
// body for the handler.
func fingerprint(c *gin.Context) (string, error) {
	var body []byte
	if c.Request.Body != nil {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		body = b
		c.Request.Body = io.NopCloser(bytes.NewReader(b))
	}
	h := sha256.New()
	io.WriteString(h, c.Request.Method+"\n"+idemRoute(c)+"\n")
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

type teeWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idemRoute is the matched route pattern, or the raw path when none matched.
func idemRoute(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// abortJSON ends the request with the API error envelope.
func abortJSON(c *gin.Context, status int, code, msg string) {
	body := gin.H{"code": code, "message": msg}
	if rid := c.GetString(requestIDKey); rid != "" {
		body["request_id"] = rid
	}
	c.AbortWithStatusJSON(status, body)
}
