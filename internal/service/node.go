package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/domain"
)

const nodeReturnClause = `RETURN n.id AS id, n.name AS name, n.description AS description,
       n.created_at AS created_at, n.updated_at AS updated_at`

// NodeService manages ExampleNode records on a graph backend. Timestamps
// are stored as RFC 3339 strings so exported Cypher stays portable.
type NodeService struct {
	h backend.Handler
}

// NewNodeService creates a NodeService on the given handler.
func NewNodeService(h backend.Handler) *NodeService {
	return &NodeService{h: h}
}

// Create inserts a new node and returns it.
func (s *NodeService) Create(ctx context.Context, name, description string) (*domain.ExampleNode, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	params := map[string]any{
		"id":          uuid.NewString(),
		"name":        name,
		"description": description,
		"created_at":  now,
		"updated_at":  now,
	}
	rows, err := s.h.ExecuteQuery(ctx,
		`CREATE (n:ExampleNode {id: $id, name: $name, description: $description,
		 created_at: $created_at, updated_at: $updated_at})
		 `+nodeReturnClause,
		params,
	)
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create node: no row returned")
	}
	return rowToNode(rows[0]), nil
}

// Get returns the node with the given ID.
func (s *NodeService) Get(ctx context.Context, id string) (*domain.ExampleNode, error) {
	rows, err := s.h.ExecuteQuery(ctx,
		`MATCH (n:ExampleNode {id: $id}) `+nodeReturnClause,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, id)
	}
	return rowToNode(rows[0]), nil
}

// List returns a page of nodes ordered newest first, plus the total
// count of nodes matching the filter. A non-empty nameFilter keeps only
// nodes whose name contains it, case-insensitively.
func (s *NodeService) List(ctx context.Context, limit, offset int, nameFilter string) ([]domain.ExampleNode, int64, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	match := `MATCH (n:ExampleNode) `
	params := map[string]any{"limit": limit, "offset": offset}
	countParams := map[string]any{}
	if nameFilter != "" {
		match += `WHERE toLower(n.name) CONTAINS toLower($name_filter) `
		params["name_filter"] = nameFilter
		countParams["name_filter"] = nameFilter
	}

	rows, err := s.h.ExecuteQuery(ctx,
		match+nodeReturnClause+`
		 ORDER BY n.created_at DESC SKIP $offset LIMIT $limit`,
		params,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list nodes: %w", err)
	}

	nodes := make([]domain.ExampleNode, len(rows))
	for i, row := range rows {
		nodes[i] = *rowToNode(row)
	}

	countRows, err := s.h.ExecuteQuery(ctx,
		match+`RETURN count(n) AS count`, countParams)
	if err != nil {
		return nil, 0, fmt.Errorf("count nodes: %w", err)
	}
	total := int64(0)
	if len(countRows) > 0 {
		total = toInt64(countRows[0]["count"])
	}
	return nodes, total, nil
}

// Update merges the provided fields into a node. Nil means unchanged; at
// least one field must be set.
func (s *NodeService) Update(ctx context.Context, id string, name, description *string) (*domain.ExampleNode, error) {
	if name == nil && description == nil {
		return nil, fmt.Errorf("%w: at least one field must be provided", domain.ErrInvalidInput)
	}
	if name != nil && *name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if name != nil {
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}

	rows, err := s.h.ExecuteQuery(ctx,
		`MATCH (n:ExampleNode {id: $id}) SET n += $updates `+nodeReturnClause,
		map[string]any{"id": id, "updates": updates},
	)
	if err != nil {
		return nil, fmt.Errorf("update node: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, id)
	}
	return rowToNode(rows[0]), nil
}

// Delete removes a node by ID.
func (s *NodeService) Delete(ctx context.Context, id string) error {
	rows, err := s.h.ExecuteQuery(ctx,
		`MATCH (n:ExampleNode {id: $id}) DELETE n RETURN count(n) AS deleted`,
		map[string]any{"id": id},
	)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if len(rows) == 0 || toInt64(rows[0]["deleted"]) == 0 {
		return fmt.Errorf("%w: node %s", domain.ErrNotFound, id)
	}
	return nil
}

// DeleteAll removes every node and returns how many were deleted.
func (s *NodeService) DeleteAll(ctx context.Context) (int64, error) {
	rows, err := s.h.ExecuteQuery(ctx,
		`MATCH (n:ExampleNode) DELETE n RETURN count(n) AS deleted`, nil)
	if err != nil {
		return 0, fmt.Errorf("delete all nodes: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["deleted"]), nil
}

func rowToNode(row map[string]any) *domain.ExampleNode {
	return &domain.ExampleNode{
		ID:          toString(row["id"]),
		Name:        toString(row["name"]),
		Description: toString(row["description"]),
		CreatedAt:   toString(row["created_at"]),
		UpdatedAt:   toString(row["updated_at"]),
	}
}
