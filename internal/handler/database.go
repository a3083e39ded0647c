package handler

import (
	"fmt"
	"net/http"

	"github.com/plinth-dev/plinth/internal/lock"
)

// DatabaseHandler exposes the maintenance lock so the backup
// orchestrator (or an operator) can take, clear, and inspect it.
type DatabaseHandler struct {
	coord *lock.Coordinator
}

// NewDatabaseHandler creates a new DatabaseHandler.
func NewDatabaseHandler(coord *lock.Coordinator) *DatabaseHandler {
	return &DatabaseHandler{coord: coord}
}

// lockRequest names the maintenance operation taking the lock.
type lockRequest struct {
	Operation string `json:"operation"`
}

// HandleLockStatus reports the current lock state. An unreadable lock
// file is surfaced here even though the lock guard fails open on it.
func (h *DatabaseHandler) HandleLockStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.coord.Status()
	if err != nil {
		serviceError(w, err, "read lock status")
		return
	}
	message := "Database is not locked"
	if status.Locked {
		message = "Database is locked"
	}
	writeJSON(w, http.StatusOK, LockResponse{
		Success:       true,
		Message:       message,
		IsLocked:      status.Locked,
		LockOperation: status.Operation,
	})
}

// HandleLock takes the lock for the operation named in the request
// body, defaulting to restore. Conflicts with a live record; an
// expired one is overwritten.
func (h *DatabaseHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
	}
	if req.Operation == "" {
		req.Operation = "restore"
	}

	status, err := h.coord.Status()
	if err == nil && status.Locked {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("Database is already locked by operation: %s", status.Operation))
		return
	}

	if err := h.coord.Lock(req.Operation); err != nil {
		serviceError(w, err, "acquire lock")
		return
	}
	writeJSON(w, http.StatusOK, LockResponse{
		Success:       true,
		Message:       fmt.Sprintf("Database locked for operation: %s", req.Operation),
		IsLocked:      true,
		LockOperation: req.Operation,
	})
}

// HandleUnlock clears the lock. Unlocking an absent lock succeeds.
func (h *DatabaseHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.Unlock(); err != nil {
		serviceError(w, err, "release lock")
		return
	}
	writeJSON(w, http.StatusOK, LockResponse{
		Success:  true,
		Message:  "Database unlocked successfully",
		IsLocked: false,
	})
}
