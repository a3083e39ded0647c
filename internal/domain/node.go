package domain

// ExampleNode is the template entity stored by the graph backend as
// (:ExampleNode {id, name, description, created_at, updated_at}).
// Timestamps are RFC 3339 strings because Neo4j properties keep them
// as plain strings in this scheme.
type ExampleNode struct {
	ID          string
	Name        string
	Description string
	CreatedAt   string
	UpdatedAt   string
}
