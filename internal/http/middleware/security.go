package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheRule sets Cache-Control for routes whose pattern starts with Prefix.
type CacheRule struct {
	Prefix       string
	CacheControl string
}

// SecurityOptions configures SecurityHeaders.
//
// Coupon codes are bearer credentials: anyone holding one can redeem it.
// Responses default to DefaultCacheControl (normally "no-store") and only
// routes matched by a CacheRule may be cached, such as the public deal
// catalog or the ETag-validated transaction log.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests. Enable it
	// only when traffic is HTTPS end to end.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// DefaultCacheControl applies to routes no rule matches. Empty sets nothing.
	DefaultCacheControl string
	// CacheRules are checked in order against c.FullPath(); first match wins.
	CacheRules []CacheRule
}

// SecurityHeaders sets the hardening headers every API response carries
// (nosniff, frame denial, no referrer, feature policy), the route's
// Cache-Control, and HSTS for HTTPS requests when enabled.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = int64(180 * 24 * time.Hour / time.Second)
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")

		if cc := cacheControlFor(c.FullPath(), opt); cc != "" {
			h.Set("Cache-Control", cc)
			if cc == "no-store" {
				h.Set("Pragma", "no-cache")
			}
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		c.Next()
	}
}

func cacheControlFor(route string, opt SecurityOptions) string {
	if route != "" {
		for _, r := range opt.CacheRules {
			if strings.HasPrefix(route, r.Prefix) {
				return r.CacheControl
			}
		}
	}
	return opt.DefaultCacheControl
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
