package server

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"etude/internal/logging"
)

// Notation media types. .mxl is the compressed container format.
const (
	mediaTypeMusicXML   = "application/vnd.recordare.musicxml+xml"
	mediaTypeCompressed = "application/vnd.recordare.musicxml"
)

// DataHandler serves raw notation files from the data directory.
type DataHandler struct {
	dataDir string
}

// NewDataHandler creates a handler rooted at the data directory.
func NewDataHandler(dataDir string) *DataHandler {
	return &DataHandler{dataDir: dataDir}
}

// ServeFile handles GET /data/*. Paths that escape the data root are
// reported as missing, not forbidden.
func (h *DataHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	abs, ok := h.resolve(decoded)
	if !ok {
		logging.ServerDebug("rejected data path %q", raw)
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	f, err := os.Open(abs)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".musicxml":
		w.Header().Set("Content-Type", mediaTypeMusicXML)
	case ".mxl":
		w.Header().Set("Content-Type", mediaTypeCompressed)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resolve maps a request path to an absolute path strictly under the data
// root.
func (h *DataHandler) resolve(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", false
	}
	root := filepath.Clean(h.dataDir)
	abs := filepath.Join(root, cleaned)
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return "", false
	}
	return abs, true
}
