package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// AnonymousOperator is the identity recorded when a request names no
// operator.
const AnonymousOperator = "demo-user"

// ctxKeyOperator is where an authentication layer stores the caller id.
const ctxKeyOperator = "userID"

// OperatorID returns the caller's identity: the id an upstream auth layer
// stored in the context, else the X-User-ID header. ok is false when the
// request carries neither.
func OperatorID(c *gin.Context) (id string, ok bool) {
	if v, found := c.Get(ctxKeyOperator); found {
		if s, _ := v.(string); s != "" {
			return s, true
		}
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h, true
		}
	}
	return "", false
}

// OperatorOrAnonymous is OperatorID with AnonymousOperator as the fallback.
func OperatorOrAnonymous(c *gin.Context) string {
	if id, ok := OperatorID(c); ok {
		return id
	}
	return AnonymousOperator
}
