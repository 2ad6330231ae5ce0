package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/winston-domains/winston/internal/gateway"
	"github.com/winston-domains/winston/internal/metrics"
	"github.com/winston-domains/winston/internal/model"
	"github.com/winston-domains/winston/internal/ratelimit"
	"github.com/winston-domains/winston/internal/store"
)

type ctxKey int

const userKey ctxKey = iota

// UserFrom returns the authenticated user attached to the request, or nil.
func UserFrom(r *http.Request) *model.User {
	u, _ := r.Context().Value(userKey).(*model.User)
	return u
}

// AuthMiddleware resolves the bearer token to a user and attaches it to the
// request context. A present-but-invalid token is rejected even on optional
// routes; required routes also reject a missing token.
func AuthMiddleware(st *store.Store, required bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			if required {
				WriteError(w, gateway.E(gateway.KindUnauthorized, "missing Authorization header"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			WriteError(w, gateway.E(gateway.KindUnauthorized, "invalid Authorization header format"))
			return
		}

		user, err := st.GetUserByAPIKey(auth[len(prefix):])
		if err != nil {
			WriteError(w, err)
			return
		}
		if user == nil {
			WriteError(w, gateway.E(gateway.KindUnauthorized, "invalid api key"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// RateLimitMiddleware consumes one slot per request, keyed by user id when
// authenticated and client IP otherwise. Rejections carry Retry-After.
func RateLimitMiddleware(limiter *ratelimit.Limiter, m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "anon:" + clientIP(r)
		if user := UserFrom(r); user != nil {
			key = user.ID
		}

		allowed, retryAfter := limiter.Consume(key)
		if !allowed {
			m.RateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			WriteError(w, gateway.E(gateway.KindRateLimited, "rate limit exceeded").
				WithDetails(map[string]any{"retryAfterSec": retryAfter}))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware emits permissive CORS headers and answers preflights.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestBodyLimitMiddleware enforces a max request body size for downstream
// handlers.
func RequestBodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	if maxBytes <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// MetricsMiddleware counts requests per route and status code.
func MetricsMiddleware(m *metrics.Metrics, route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
