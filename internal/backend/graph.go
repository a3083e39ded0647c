package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"

	"github.com/plinth-dev/plinth/internal/config"
)

// GraphConn is the optional capability exposing the raw Neo4j driver.
// The graph backup service uses it for export sessions.
type GraphConn interface {
	Driver() neo4j.Driver
}

// GraphHandler serves the neo4j kind. The driver connects lazily on
// first use.
type GraphHandler struct {
	uri    string
	driver neo4j.Driver

	closeOnce sync.Once
	closeErr  error
}

func newGraphHandler(cfg *config.Config) (*GraphHandler, error) {
	driver, err := neo4j.NewDriver(cfg.Neo4jURL, neo4j.BasicAuth(cfg.DBUser, cfg.DBPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &GraphHandler{uri: cfg.Neo4jURL, driver: driver}, nil
}

func (h *GraphHandler) Kind() config.Kind { return config.KindNeo4j }

// Driver exposes the raw driver for backup export sessions.
func (h *GraphHandler) Driver() neo4j.Driver { return h.driver }

// MaskedDSN returns the bolt URI with any inline password blanked.
func (h *GraphHandler) MaskedDSN() string { return MaskDSN(h.uri) }

// TestConnection issues RETURN 1 and reports the outcome.
func (h *GraphHandler) TestConnection(ctx context.Context) Status {
	if _, err := h.ExecuteQuery(ctx, "RETURN 1 AS result", nil); err != nil {
		return Status{OK: false, Message: fmt.Sprintf("database connection failed: %v", err)}
	}
	return Status{OK: true, Message: "database connection successful"}
}

// ExecuteQuery runs one Cypher statement with "$name" parameters and
// returns the records as key/value maps.
func (h *GraphHandler) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := h.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("run cypher: %w", err)
	}

	out := []map[string]any{}
	for result.Next(ctx) {
		out = append(out, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("consume cypher result: %w", err)
	}
	return out, nil
}

func (h *GraphHandler) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.driver.Close(context.Background())
	})
	return h.closeErr
}
