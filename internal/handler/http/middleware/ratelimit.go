package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/leave-engine/internal/handler/http/response"
	"github.com/ulule/limiter/v3"
)

// RateLimit limits requests per client IP.
func RateLimit(limiterInstance *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			context, err := limiterInstance.Get(r.Context(), ip)
			if err != nil {
				slog.ErrorContext(r.Context(), "Failed to get rate limit context", slog.String("ip", ip), slog.String("error", err.Error()))
				response.InternalServerError(w, "Internal server error during rate limit check")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(context.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(context.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(context.Reset, 10))

			if context.Reached {
				slog.WarnContext(r.Context(), "Rate limit exceeded", slog.String("ip", ip), slog.Int64("limit", context.Limit))
				response.TooManyRequests(w, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
