package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/plinth-dev/plinth/internal/backup"
	"github.com/plinth-dev/plinth/internal/domain"
	"github.com/plinth-dev/plinth/internal/lock"
	"github.com/plinth-dev/plinth/internal/metrics"
)

// maxUploadMemory caps the in-memory part of a multipart restore
// upload; larger bodies spool to disk.
const maxUploadMemory = 32 << 20

// BackupHandler handles backup and restore requests. Destructive
// operations take the database lock for their duration so the lock
// guard can turn away concurrent writes.
type BackupHandler struct {
	backups *backup.Service
	coord   *lock.Coordinator
	metrics *metrics.Metrics
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(backups *backup.Service, coord *lock.Coordinator, m *metrics.Metrics) *BackupHandler {
	return &BackupHandler{backups: backups, coord: coord, metrics: m}
}

// acquireLock takes the maintenance lock, reporting ErrLockHeld when a
// live record already exists. An unreadable record is overwritten: a
// corrupt lock file must not wedge maintenance forever.
func (h *BackupHandler) acquireLock(operation string) (release func(), err error) {
	status, err := h.coord.Status()
	if err == nil && status.Locked {
		return nil, fmt.Errorf("%w: %s in progress", domain.ErrLockHeld, status.Operation)
	}
	if err := h.coord.Lock(operation); err != nil {
		return nil, fmt.Errorf("acquire database lock: %w", err)
	}
	return func() {
		if err := h.coord.Unlock(); err != nil {
			slog.Warn("release database lock", "error", err)
		}
	}, nil
}

// HandleCreate creates a backup of the configured database.
// Compression is on unless compress=false.
func (h *BackupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	compress := r.URL.Query().Get("compress") != "false"

	release, err := h.acquireLock("backup")
	if err != nil {
		serviceError(w, err, "acquire backup lock")
		return
	}
	defer release()

	start := time.Now()
	b, err := h.backups.Create(r.Context(), compress)
	h.metrics.ObserveMaintenance("backup", err, time.Since(start))
	if err != nil {
		serviceError(w, err, "create backup")
		return
	}
	h.metrics.ObserveArtifactSize(b.SizeBytes)

	writeJSON(w, http.StatusOK, BackupResponse{
		Success:  true,
		Message:  "Backup created successfully",
		Filename: b.Filename,
		SizeMB:   b.SizeMB,
	})
}

// HandleList returns the artifacts in the backup directory, newest
// first.
func (h *BackupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List()
	if err != nil {
		serviceError(w, err, "list backups")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"backups":     toBackupDTOs(backups),
		"total_count": len(backups),
	})
}

// HandleDownload streams one artifact to the caller.
func (h *BackupHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	path, err := h.backups.Path(filename)
	if err != nil {
		serviceError(w, err, "resolve backup path")
		return
	}

	w.Header().Set("Content-Type", artifactContentType(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

// HandleRestore restores the database from an existing artifact. A
// safety backup is taken first unless create_safety_backup=false.
func (h *BackupHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	createSafety := r.URL.Query().Get("create_safety_backup") != "false"

	release, err := h.acquireLock("restore")
	if err != nil {
		serviceError(w, err, "acquire restore lock")
		return
	}
	defer release()

	start := time.Now()
	res, err := h.backups.Restore(r.Context(), filename, createSafety)
	h.metrics.ObserveMaintenance("restore", err, time.Since(start))
	if err != nil {
		serviceError(w, err, "restore backup")
		return
	}

	writeJSON(w, http.StatusOK, RestoreResponse{
		Success:              true,
		Message:              fmt.Sprintf("Database restored from %s", filename),
		SafetyBackupCreated:  res.SafetyBackupCreated,
		SafetyBackupFilename: res.SafetyBackupFilename,
	})
}

// HandleRestoreUpload restores the database from an uploaded artifact.
func (h *BackupHandler) HandleRestoreUpload(w http.ResponseWriter, r *http.Request) {
	createSafety := r.URL.Query().Get("create_safety_backup") != "false"

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart request.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A backup file upload is required.")
		return
	}
	defer file.Close()

	release, err := h.acquireLock("restore")
	if err != nil {
		serviceError(w, err, "acquire restore lock")
		return
	}
	defer release()

	start := time.Now()
	res, err := h.backups.RestoreUpload(r.Context(), file, header.Filename, createSafety)
	h.metrics.ObserveMaintenance("restore", err, time.Since(start))
	if err != nil {
		serviceError(w, err, "restore uploaded backup")
		return
	}

	writeJSON(w, http.StatusOK, RestoreResponse{
		Success:              true,
		Message:              fmt.Sprintf("Database restored from uploaded file %s", header.Filename),
		SafetyBackupCreated:  res.SafetyBackupCreated,
		SafetyBackupFilename: res.SafetyBackupFilename,
	})
}

// HandleDelete removes one artifact from the backup directory.
func (h *BackupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	start := time.Now()
	err := h.backups.Delete(filename)
	h.metrics.ObserveMaintenance("delete", err, time.Since(start))
	if err != nil {
		serviceError(w, err, "delete backup")
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: fmt.Sprintf("Backup %s deleted", filename),
	})
}

// HandleStats reports the graph database contents. Registered only
// when the configured backend is a graph.
func (h *BackupHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backups.GraphStats(r.Context())
	if err != nil {
		serviceError(w, err, "graph stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func artifactContentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(filename, ".sql"):
		return "application/sql"
	default:
		return "application/octet-stream"
	}
}
