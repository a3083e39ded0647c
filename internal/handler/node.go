package handler

import (
	"fmt"
	"net/http"

	"github.com/plinth-dev/plinth/internal/service"
)

// NodeHandler handles example-node CRUD requests on the graph backend.
type NodeHandler struct {
	nodes *service.NodeService
}

// NewNodeHandler creates a new NodeHandler.
func NewNodeHandler(nodes *service.NodeService) *NodeHandler {
	return &NodeHandler{nodes: nodes}
}

// HandleList returns a page of nodes, optionally filtered by name.
func (h *NodeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := listWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.URL.Query().Get("name")

	nodes, total, err := h.nodes.List(r.Context(), limit, offset, name)
	if err != nil {
		serviceError(w, err, "list nodes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   toNodeDTOs(nodes),
		"pagination": Pagination{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

// HandleCreate creates a new node.
func (h *NodeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	node, err := h.nodes.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		serviceError(w, err, "create node")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "Node created",
		"data":    toNodeDTO(node),
	})
}

// HandleGet returns one node by ID.
func (h *NodeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	node, err := h.nodes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "get node")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   toNodeDTO(node),
	})
}

// HandleUpdate applies a partial update to a node.
func (h *NodeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	node, err := h.nodes.Update(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		serviceError(w, err, "update node")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Node updated",
		"data":    toNodeDTO(node),
	})
}

// HandleDelete removes a node.
func (h *NodeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.nodes.Delete(r.Context(), id); err != nil {
		serviceError(w, err, "delete node")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Node %s deleted", id),
	})
}

// HandleDeleteAll removes every node. Useful in test environments;
// production deployments should keep this behind network policy.
func (h *NodeHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.nodes.DeleteAll(r.Context())
	if err != nil {
		serviceError(w, err, "delete all nodes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       fmt.Sprintf("Deleted %d node(s)", deleted),
		"deleted_count": deleted,
	})
}
