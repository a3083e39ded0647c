package handler

import (
	"net/http"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/config"
)

// DBTestHandler exposes connectivity probes against the configured
// backend. These routes exist for smoke-testing a deployment.
type DBTestHandler struct {
	backend backend.Handler
	cfg     *config.Config
}

// NewDBTestHandler creates a new DBTestHandler.
func NewDBTestHandler(h backend.Handler, cfg *config.Config) *DBTestHandler {
	return &DBTestHandler{backend: h, cfg: cfg}
}

// HandleDBTest runs a connection probe and reports the outcome. The
// response is always 200; an unreachable database is data, not an
// error.
func (h *DBTestHandler) HandleDBTest(w http.ResponseWriter, r *http.Request) {
	status := h.backend.TestConnection(r.Context())
	result := "success"
	if !status.OK {
		result = "failed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        result,
		"message":       status.Message,
		"database_type": string(h.backend.Kind()),
	})
}

// HandleDBInfo describes the configured backend.
func (h *DBTestHandler) HandleDBInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"database_type": string(h.backend.Kind()),
		"description":   kindDescription(h.backend.Kind()),
	}
	if h.backend.Kind() == config.KindNeo4j {
		info["url"] = backend.MaskDSN(h.cfg.Neo4jURL)
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleSampleQuery runs a trivial round-trip through ExecuteQuery.
func (h *DBTestHandler) HandleSampleQuery(w http.ResponseWriter, r *http.Request) {
	query := "SELECT 'Hello from SQL' as message"
	if h.backend.Kind().IsGraph() {
		query = "RETURN 'Hello from Neo4j' as message"
	}

	rows, err := h.backend.ExecuteQuery(r.Context(), query, nil)
	if err != nil {
		serviceError(w, err, "sample query")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": rows,
	})
}

func kindDescription(kind config.Kind) string {
	switch kind {
	case config.KindPostgres:
		return "PostgreSQL relational database"
	case config.KindMySQL:
		return "MySQL relational database"
	case config.KindSQLite:
		return "SQLite file-backed relational database"
	case config.KindNeo4j:
		return "Neo4j graph database"
	}
	return "unknown"
}
