package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yegors/co-wx/pkg/logger"
)

// StaticFileHandler serves files from a directory without caching
type StaticFileHandler struct {
	staticDir string
	logger    *logger.Logger
}

// NewStaticFileHandler creates a new static file handler
func NewStaticFileHandler(staticDir string, log *logger.Logger) *StaticFileHandler {
	return &StaticFileHandler{
		staticDir: staticDir,
		logger:    log.Named("static-handler"),
	}
}

// ServeHTTP serves the requested file, or index.html for directories
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fullPath, ok := h.resolve(r.URL.Path)
	if !ok {
		h.logger.Warn("Rejected static path outside the static directory",
			logger.String("requested_path", r.URL.Path))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(fullPath)
	if err == nil && info.IsDir() {
		fullPath = filepath.Join(fullPath, "index.html")
		info, err = os.Stat(fullPath)
	}
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.Error("Failed to stat file", logger.Error(err), logger.String("path", fullPath))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	http.ServeFile(w, r, fullPath)
}

// resolve maps a URL path into the static directory
func (h *StaticFileHandler) resolve(urlPath string) (string, bool) {
	root, err := filepath.Abs(h.staticDir)
	if err != nil {
		return "", false
	}

	rel := strings.TrimPrefix(filepath.Clean("/"+urlPath), "/")
	full := filepath.Join(root, rel)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}
