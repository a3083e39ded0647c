package handler

import (
	"net/http"

	"github.com/plinth-dev/plinth/internal/service"
)

// FilesHandler exposes read-only listings of the mounted files
// directory.
type FilesHandler struct {
	files *service.FileService
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(files *service.FileService) *FilesHandler {
	return &FilesHandler{files: files}
}

// HandleList returns the names of the .txt files in the directory.
func (h *FilesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.files.ListTxtFiles()
	if err != nil {
		serviceError(w, err, "list txt files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"txt_files": names})
}

// HandleExtensions returns the distinct extensions present.
func (h *FilesHandler) HandleExtensions(w http.ResponseWriter, r *http.Request) {
	exts, err := h.files.Extensions()
	if err != nil {
		serviceError(w, err, "list extensions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"extensions": exts})
}

// HandleCount returns the number of files in the directory.
func (h *FilesHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.files.Count()
	if err != nil {
		serviceError(w, err, "count files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_count": n})
}

// HandleRead returns the contents of every .txt file.
func (h *FilesHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.ReadTxtFiles()
	if err != nil {
		serviceError(w, err, "read txt files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// HandleListByExtension returns the names of files with the given
// extension.
func (h *FilesHandler) HandleListByExtension(w http.ResponseWriter, r *http.Request) {
	ext := r.PathValue("extension")
	names, err := h.files.ListByExtension(ext)
	if err != nil {
		serviceError(w, err, "list files by extension")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"extension": ext,
		"files":     names,
		"count":     len(names),
	})
}

// HandleReadByExtension returns the contents of files with the given
// extension.
func (h *FilesHandler) HandleReadByExtension(w http.ResponseWriter, r *http.Request) {
	ext := r.PathValue("extension")
	files, err := h.files.ReadByExtension(ext)
	if err != nil {
		serviceError(w, err, "read files by extension")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"extension": ext,
		"files":     files,
	})
}
