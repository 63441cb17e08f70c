package ratelimit

import (
	"net"
	"net/http"
	"strconv"
)

// RetryAfterSeconds is sent in the Retry-After header of a throttled response.
const RetryAfterSeconds = 1

// ClientIP keys requests by remote host, ignoring the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
// onLimited, when non-nil, is called for every rejected request.
func Middleware(limiter *RateLimiter, key func(r *http.Request) string, onLimited func(r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket := limiter.Limiter(key(r))
			if !bucket.Allow() {
				if onLimited != nil {
					onLimited(r)
				}
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("Too Many Requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
