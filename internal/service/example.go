package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/domain"
)

// List windows: a zero or negative limit falls back to the default, and
// requests beyond the maximum are capped rather than rejected.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ExampleService manages example records on a relational backend.
type ExampleService struct {
	h backend.Handler
}

// NewExampleService creates an ExampleService on the given handler.
func NewExampleService(h backend.Handler) *ExampleService {
	return &ExampleService{h: h}
}

// Create inserts a new example and returns it.
func (s *ExampleService) Create(ctx context.Context, name, description string) (*domain.Example, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	example := &domain.Example{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.h.ExecuteQuery(ctx,
		`INSERT INTO examples (id, name, description, created_at, updated_at)
		 VALUES (:id, :name, :description, :created_at, :updated_at)`,
		map[string]any{
			"id":          example.ID,
			"name":        example.Name,
			"description": example.Description,
			"created_at":  example.CreatedAt,
			"updated_at":  example.UpdatedAt,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create example: %w", err)
	}
	return example, nil
}

// Get returns the example with the given ID.
func (s *ExampleService) Get(ctx context.Context, id string) (*domain.Example, error) {
	rows, err := s.h.ExecuteQuery(ctx,
		`SELECT id, name, description, created_at, updated_at FROM examples WHERE id = :id`,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, fmt.Errorf("get example: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: example %s", domain.ErrNotFound, id)
	}
	return rowToExample(rows[0]), nil
}

// List returns a page of examples ordered newest first, plus the total
// record count.
func (s *ExampleService) List(ctx context.Context, limit, offset int) ([]domain.Example, int64, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.h.ExecuteQuery(ctx,
		`SELECT id, name, description, created_at, updated_at FROM examples
		 ORDER BY created_at DESC LIMIT :limit OFFSET :offset`,
		map[string]any{"limit": limit, "offset": offset},
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list examples: %w", err)
	}

	examples := make([]domain.Example, len(rows))
	for i, row := range rows {
		examples[i] = *rowToExample(row)
	}

	countRows, err := s.h.ExecuteQuery(ctx, `SELECT COUNT(*) AS total FROM examples`, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("count examples: %w", err)
	}
	total := int64(0)
	if len(countRows) > 0 {
		total = toInt64(countRows[0]["total"])
	}
	return examples, total, nil
}

// Update changes the provided fields of an example. Nil means unchanged;
// at least one field must be set.
func (s *ExampleService) Update(ctx context.Context, id string, name, description *string) (*domain.Example, error) {
	if name == nil && description == nil {
		return nil, fmt.Errorf("%w: at least one field must be provided", domain.ErrInvalidInput)
	}
	if name != nil && *name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
	}

	example, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		example.Name = *name
	}
	if description != nil {
		example.Description = *description
	}
	example.UpdatedAt = time.Now().UTC()

	_, err = s.h.ExecuteQuery(ctx,
		`UPDATE examples SET name = :name, description = :description, updated_at = :updated_at
		 WHERE id = :id`,
		map[string]any{
			"id":          example.ID,
			"name":        example.Name,
			"description": example.Description,
			"updated_at":  example.UpdatedAt,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("update example: %w", err)
	}
	return example, nil
}

// Delete removes an example by ID.
func (s *ExampleService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.h.ExecuteQuery(ctx,
		`DELETE FROM examples WHERE id = :id`,
		map[string]any{"id": id},
	)
	if err != nil {
		return fmt.Errorf("delete example: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func rowToExample(row map[string]any) *domain.Example {
	return &domain.Example{
		ID:          toString(row["id"]),
		Name:        toString(row["name"]),
		Description: toString(row["description"]),
		CreatedAt:   toTime(row["created_at"]),
		UpdatedAt:   toTime(row["updated_at"]),
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	case []byte:
		parsed, _ := strconv.ParseInt(string(n), 10, 64)
		return parsed
	}
	return 0
}

// toTime normalizes timestamp columns across drivers: Postgres and MySQL
// scan into time.Time, SQLite stores text.
func toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	}
	return time.Time{}
}

func parseTimeString(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
