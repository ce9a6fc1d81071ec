// Package middleware adapts the teacher's request-id/logging/CORS/
// rate-limit/metrics middleware stack onto this project's HTTP surface.
package middleware

type contextKey string

const (
	RequestIDContextKey contextKey = "request_id"
)

const (
	RequestIDHeader = "X-Request-ID"

	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
)
