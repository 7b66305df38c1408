package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/docmill/docmill/internal/docid"
	"github.com/docmill/docmill/internal/pipeline"
)

// handleProcessDocument accepts one PDF upload and runs it through the
// full stage sequence synchronously, responding with the merged record.
func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

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
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	// Uploads land under the shared output root so the per-document
	// folder sits next to batch outputs.
	incomingDir := filepath.Join(s.worker.OutputRoot, "incoming")
	if err := os.MkdirAll(incomingDir, 0o755); err != nil {
		jsonError(w, "cannot prepare upload dir", http.StatusInternalServerError)
		return
	}
	pdfPath := filepath.Join(incomingDir, filename)
	if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
		jsonError(w, "cannot persist upload", http.StatusInternalServerError)
		return
	}

	item := pipeline.WorkItem{
		SourcePath: pdfPath,
		DocID:      docid.Resolve(pdfPath, s.cfg.DocIDMetadataKey),
	}
	out := s.worker.Process(r.Context(), item)
	if out.Failed() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error": out.Err.Error(),
			"stage": string(out.Stage),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out.Record)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sanitizeFilename strips path components from an uploaded filename.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.pdf"
	}
	return name
}
