package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/plinth-dev/plinth/internal/cache"
	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/domain"
)

// CacheHandler serves the landing route and the cache key routes. The
// cache may be nil when no Redis is configured; the landing route then
// skips the visit counter.
type CacheHandler struct {
	cache *cache.Cache
	kind  config.Kind
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(c *cache.Cache, kind config.Kind) *CacheHandler {
	return &CacheHandler{cache: c, kind: kind}
}

// HandleRoot greets the caller, counting visits when a cache is
// available. A failing cache degrades to the plain greeting.
func (h *CacheHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	message := "Hello from Plinth!"
	if h.cache != nil {
		visits, err := h.cache.IncrVisits(r.Context())
		if err != nil {
			slog.Warn("visit counter unavailable", "error", err)
		} else {
			message = fmt.Sprintf("Hello from Plinth! This page has been viewed %d times.", visits)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       message,
		"database_type": string(h.kind),
	})
}

// HandleGet returns a cached value.
func (h *CacheHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := h.cache.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Key not found")
			return
		}
		serviceError(w, err, "cache get")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": value,
	})
}

// HandleSet stores a value under a key.
func (h *CacheHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "The value query parameter is required.")
		return
	}

	if err := h.cache.Set(r.Context(), key, value); err != nil {
		serviceError(w, err, "cache set")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Key %s set", key),
		"key":     key,
		"value":   value,
	})
}
