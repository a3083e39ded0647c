package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/plinth-dev/plinth/internal/service"
)

// ExampleHandler handles example CRUD requests on relational backends.
type ExampleHandler struct {
	examples *service.ExampleService
}

// NewExampleHandler creates a new ExampleHandler.
func NewExampleHandler(examples *service.ExampleService) *ExampleHandler {
	return &ExampleHandler{examples: examples}
}

// HandleList returns a page of examples.
func (h *ExampleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := listWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	examples, total, err := h.examples.List(r.Context(), limit, offset)
	if err != nil {
		serviceError(w, err, "list examples")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   toExampleDTOs(examples),
		"pagination": Pagination{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

// HandleCreate creates a new example.
func (h *ExampleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	example, err := h.examples.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		serviceError(w, err, "create example")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "Example created",
		"data":    toExampleDTO(example),
	})
}

// HandleGet returns one example by ID.
func (h *ExampleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	example, err := h.examples.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "get example")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   toExampleDTO(example),
	})
}

// HandleUpdate applies a partial update to an example.
func (h *ExampleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	example, err := h.examples.Update(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		serviceError(w, err, "update example")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Example updated",
		"data":    toExampleDTO(example),
	})
}

// HandleDelete removes an example.
func (h *ExampleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.examples.Delete(r.Context(), id); err != nil {
		serviceError(w, err, "delete example")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Example %s deleted", id),
	})
}

// listWindow parses the limit and offset query parameters, applying
// the service defaults when absent so the echoed pagination matches
// the page actually served.
func listWindow(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = service.DefaultListLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		if limit > service.MaxListLimit {
			limit = service.MaxListLimit
		}
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
	}
	return limit, offset, nil
}
