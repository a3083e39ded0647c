package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/backend/migrate"
	"github.com/plinth-dev/plinth/internal/backup"
	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/handler"
	"github.com/plinth-dev/plinth/internal/lock"
	"github.com/plinth-dev/plinth/internal/metrics"
	"github.com/plinth-dev/plinth/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests"

// newTestDeps wires a migrated sqlite backend and the full dependency set
// into a temp directory.
func newTestDeps(t *testing.T) handler.Deps {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Port:          8000,
		ImageTag:      "test",
		DBType:        config.KindSQLite,
		DBName:        filepath.Join(dir, "test.db"),
		AdminAPIKey:   "admin-key",
		RestoreAPIKey: "restore-key",
		DeleteAPIKey:  "delete-key",
		JWTSecret:     testJWTSecret,
		BackupDir:     filepath.Join(dir, "backups"),
		LockFile:      filepath.Join(dir, "plinth.lock"),
		LockTTL:       time.Hour,
	}

	h, err := backend.Open(cfg)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	report, err := migrate.RunForBackend(context.Background(), h)
	if err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if report.Failed != nil {
		t.Fatalf("migration %s failed: %v", report.Failed.ID, report.Failed.Err)
	}

	backups, err := backup.New(cfg, h)
	if err != nil {
		t.Fatalf("backup service: %v", err)
	}

	return handler.Deps{
		Cfg:      cfg,
		Backend:  h,
		Backups:  backups,
		Coord:    lock.New(cfg.LockFile, cfg.LockTTL),
		Metrics:  metrics.New(),
		Limiter:  service.NewTokenBucket(1000, 1000),
		Examples: service.NewExampleService(h),
		Users:    service.NewUserService(h),
		Verifier: service.NewTokenVerifier(testJWTSecret),
	}
}

func signTestToken(t *testing.T, sub, email string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRequireBearer_ValidToken(t *testing.T) {
	verifier := service.NewTokenVerifier(testJWTSecret)
	token := signTestToken(t, "user-1", "one@example.com")

	var gotSub string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := handler.IdentityFromContext(r.Context()); ok {
			gotSub = id.Sub
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.RequireBearer(verifier, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotSub != "user-1" {
		t.Fatalf("expected sub 'user-1', got %q", gotSub)
	}
}

func TestRequireBearer_MissingHeader(t *testing.T) {
	verifier := service.NewTokenVerifier(testJWTSecret)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)
	w := httptest.NewRecorder()

	handler.RequireBearer(verifier, inner).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireBearer_TamperedToken(t *testing.T) {
	verifier := service.NewTokenVerifier(testJWTSecret)
	token := signTestToken(t, "user-1", "one@example.com")
	tampered := token[:len(token)-1] + "X"

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)
	req.Header.Set("Authorization", "Bearer "+tampered)
	w := httptest.NewRecorder()

	handler.RequireBearer(verifier, inner).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAdminKey_NotConfigured(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/backup/create", nil)
	req.Header.Set("X-API-Key", "anything")
	w := httptest.NewRecorder()

	handler.RequireAdminKey(&config.Config{}, inner).ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ADMIN_API_KEY") {
		t.Fatalf("503 body should name the missing env var, got %s", w.Body.String())
	}
}

func TestRequireAdminKey_MissingHeader(t *testing.T) {
	cfg := &config.Config{AdminAPIKey: "admin-key"}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/backup/create", nil)
	w := httptest.NewRecorder()

	handler.RequireAdminKey(cfg, inner).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAdminKey_InvalidKey(t *testing.T) {
	cfg := &config.Config{AdminAPIKey: "admin-key"}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/backup/create", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w := httptest.NewRecorder()

	handler.RequireAdminKey(cfg, inner).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAdminKey_ValidKey(t *testing.T) {
	cfg := &config.Config{AdminAPIKey: "admin-key"}
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/backup/create", nil)
	req.Header.Set("X-API-Key", "admin-key")
	w := httptest.NewRecorder()

	handler.RequireAdminKey(cfg, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !called {
		t.Fatal("expected inner handler to be called")
	}
}

func TestLockGuard_BlocksMutationsWhileLocked(t *testing.T) {
	coord := lock.New(filepath.Join(t.TempDir(), "plinth.lock"), time.Hour)
	if err := coord.Lock("backup"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/examples", strings.NewReader("{}"))
	w := httptest.NewRecorder()

	handler.LockGuard(coord, config.KindSQLite, inner).ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Service temporarily unavailable" {
		t.Fatalf("unexpected error field: %v", body["error"])
	}
	if body["operation_in_progress"] != "backup" {
		t.Fatalf("expected operation 'backup', got %v", body["operation_in_progress"])
	}
	if body["database_type"] != "sqlite" {
		t.Fatalf("expected database_type 'sqlite', got %v", body["database_type"])
	}
}

func TestLockGuard_AllowsReadsWhileLocked(t *testing.T) {
	coord := lock.New(filepath.Join(t.TempDir(), "plinth.lock"), time.Hour)
	if err := coord.Lock("backup"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/examples", nil)
	w := httptest.NewRecorder()

	handler.LockGuard(coord, config.KindSQLite, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !called {
		t.Fatal("expected inner handler to be called")
	}
}

func TestLockGuard_ExemptsLockRoutesWhileLocked(t *testing.T) {
	coord := lock.New(filepath.Join(t.TempDir(), "plinth.lock"), time.Hour)
	if err := coord.Lock("restore"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/database/unlock", nil)
	w := httptest.NewRecorder()

	handler.LockGuard(coord, config.KindSQLite, inner).ServeHTTP(w, req)

	if !called {
		t.Fatal("lock management routes must stay reachable while locked")
	}
}

func TestLockGuard_ExpiredLockAllows(t *testing.T) {
	coord := lock.New(filepath.Join(t.TempDir(), "plinth.lock"), time.Millisecond)
	if err := coord.Lock("backup"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/examples", strings.NewReader("{}"))
	w := httptest.NewRecorder()

	handler.LockGuard(coord, config.KindSQLite, inner).ServeHTTP(w, req)

	if !called {
		t.Fatal("expired lock should not block requests")
	}
}

func TestLockGuard_FailsOpenOnCorruptLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plinth.lock")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}
	coord := lock.New(path, time.Hour)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/examples", strings.NewReader("{}"))
	w := httptest.NewRecorder()

	handler.LockGuard(coord, config.KindSQLite, inner).ServeHTTP(w, req)

	if !called {
		t.Fatal("unreadable lock state must not block requests")
	}
}

func TestRateLimit_AllowsThenThrottles(t *testing.T) {
	tb := service.NewTokenBucket(0.001, 2)

	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	wrapped := handler.RateLimit(tb, inner)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/backup/create", nil)
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/backup/create", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if calls != 2 {
		t.Fatalf("expected 2 passthroughs, got %d", calls)
	}
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.SecurityHeaders(inner).ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options: expected nosniff, got %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options: expected DENY, got %q", got)
	}
	if got := w.Header().Get("Referrer-Policy"); got != "no-referrer" {
		t.Fatalf("Referrer-Policy: expected no-referrer, got %q", got)
	}
}
