package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/vigil/internal/auth"
	pkghttp "github.com/BradenHooton/vigil/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns default rate limit config for auth endpoints (5 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 5}
}

// DefaultEventRateLimit bounds how fast one user may report behavior events
func DefaultEventRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 120}
}

// RateLimitByIP limits requests per client IP. The IP is resolved the same
// way the trust engine resolves it, so spoofed forwarding headers from
// untrusted peers do not get a fresh bucket.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByUser limits requests per authenticated user, falling back to
// the client IP when no claims are present. Must run after AuthMiddleware.
func RateLimitByUser(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil {
				return "user:" + strconv.FormatInt(claims.UserID, 10), nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
}
