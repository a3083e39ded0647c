package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/domain"
	"github.com/plinth-dev/plinth/internal/lock"
	"github.com/plinth-dev/plinth/internal/metrics"
	"github.com/plinth-dev/plinth/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext extracts the authenticated identity from the
// request context. The second return is false when the route was not
// behind RequireBearer.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(domain.Identity)
	return identity, ok
}

// RequireBearer protects routes requiring an authenticated caller. It
// validates the Authorization bearer token and injects the identity
// into the request context. Returns 401 for unauthenticated requests.
func RequireBearer(verifier *service.TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated.")
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated.")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// apiKeyHeader carries the caller's key for every maintenance tier.
// Which secret it is compared against depends on the route.
const apiKeyHeader = "X-API-Key"

// requireKey gates a route behind a static API key. The three outcomes
// are distinct: 503 when the server has no key configured for this
// tier, 401 when the caller sent none, 403 when it does not match.
func requireKey(tier, envVar, configured string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if configured == "" {
			writeError(w, http.StatusServiceUnavailable,
				fmt.Sprintf("%s API key not configured. Please set %s in environment variables.", tier, envVar))
			return
		}
		presented := r.Header.Get(apiKeyHeader)
		if presented == "" {
			writeError(w, http.StatusUnauthorized,
				"Missing API key. Please provide X-API-Key header.")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) != 1 {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminKey gates routine maintenance operations.
func RequireAdminKey(cfg *config.Config, next http.Handler) http.Handler {
	return requireKey("Admin", "ADMIN_API_KEY", cfg.AdminAPIKey, next)
}

// RequireRestoreKey gates restore operations, which overwrite data.
func RequireRestoreKey(cfg *config.Config, next http.Handler) http.Handler {
	return requireKey("Restore", "RESTORE_API_KEY", cfg.RestoreAPIKey, next)
}

// RequireDeleteKey gates artifact deletion.
func RequireDeleteKey(cfg *config.Config, next http.Handler) http.Handler {
	return requireKey("Delete", "DELETE_API_KEY", cfg.DeleteAPIKey, next)
}

// lockExemptPrefixes lists paths mutating requests may hit while a
// maintenance operation holds the database lock. The lock and backup
// routes stay reachable so a stuck lock can always be released, and
// the cache routes touch Redis, not the database under maintenance.
var lockExemptPrefixes = []string{"/database/", "/cache/"}

var lockExemptPaths = []string{"/", "/health", "/version"}

// LockGuard rejects mutating requests with 503 while a maintenance
// operation holds the database lock. A lock file that cannot be read
// fails open: one unreadable record must not take write traffic down.
func LockGuard(coord *lock.Coordinator, dbType config.Kind, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mutating(r.Method) || lockExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		status, err := coord.Status()
		if err != nil {
			slog.Warn("lock status unreadable, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if status.Locked {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":                 "Service temporarily unavailable",
				"detail":                fmt.Sprintf("Database is locked for %s operation. Write operations are blocked to prevent data corruption.", status.Operation),
				"operation_in_progress": status.Operation,
				"database_type":         string(dbType),
				"retry_after":           "Poll GET /database/lock-status to check lock status",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func lockExempt(path string) bool {
	for _, exact := range lockExemptPaths {
		if path == exact {
			return true
		}
	}
	for _, prefix := range lockExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RateLimit applies a per-client token bucket, keyed by remote IP.
// Expensive maintenance routes sit behind this.
func RateLimit(tb *service.TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Observe records request metrics and an access log line for every
// request. The metric route label is the mux pattern, not the raw
// path, so label cardinality stays bounded. The pattern is resolved
// up front so requests rejected by inner middleware still count
// against their route.
func Observe(m *metrics.Metrics, mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		m.ObserveRequest(r.Method, route, rec.status, elapsed)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

// SecurityHeaders sets the baseline response headers on every route.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
