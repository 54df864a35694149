package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/offersplice/internal/importer"
)

// handleImport converts an uploaded draft into a block document and
// stores it locally.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Local == nil {
		jsonError(w, "import requires the sqlite store", http.StatusServiceUnavailable)
		return
	}

	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxImportBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	imp, err := importer.ForFile(filename)
	if err != nil {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	if p, ok := imp.(*importer.PDFImporter); ok {
		p.FallbackPdftotext = s.cfg.PDFFallbackPdftotext
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxImportBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxImportBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxImportBytes), http.StatusRequestEntityTooLarge)
		return
	}

	doc, err := imp.Import(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, "import failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if v := r.FormValue("doc_id"); v != "" {
		doc.ID = v
	}
	if v := r.FormValue("title"); v != "" {
		doc.Title = v
	}
	if v := r.FormValue("category"); v != "" {
		doc.Category = v
	}
	if doc.ID == "" {
		jsonError(w, "doc_id is required when the filename has no usable name", http.StatusBadRequest)
		return
	}

	changed, err := s.svc.Local.PutDocument(r.Context(), doc, "import:"+filename)
	if err != nil {
		jsonError(w, "failed to store document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("document imported", "doc_id", doc.ID, "filename", filename, "blocks", len(doc.Blocks), "changed", changed)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":  doc.ID,
		"title":   doc.Title,
		"blocks":  len(doc.Blocks),
		"changed": changed,
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
