package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/layout"
	"github.com/docmill/docmill/internal/pipeline"
)

type stubExtractor struct {
	err error
}

func (s *stubExtractor) Extract(context.Context, string, string) (*layout.Tree, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &layout.Tree{Pages: []layout.Page{
		{Index: 0, Blocks: []layout.Block{
			{Kind: layout.KindParagraph, Text: "Uploaded content.", BBox: layout.BBox{10, 10, 500, 40}},
		}},
	}}, nil
}

func newTestServer(t *testing.T, ex pipeline.Extractor, apiKey string) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := &pipeline.Worker{
		Extractor:  ex,
		OutputRoot: t.TempDir(),
		Log:        log,
	}
	cfg := config.Load()
	cfg.OutputRoot = worker.OutputRoot
	cfg.APIKey = apiKey
	cfg.DocIDMetadataKey = ""
	return NewServer(worker, log, cfg)
}

func uploadRequest(t *testing.T, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, "")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestProcessDocument(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, "")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "My Paper.pdf", []byte("%PDF-1.4 stub")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var rec map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	var id string
	if err := json.Unmarshal(rec["document_id"], &id); err != nil {
		t.Fatal(err)
	}
	if id != "my-paper" {
		t.Errorf("document_id = %q, want my-paper", id)
	}
	if _, ok := rec["flat_content"]; !ok {
		t.Error("response missing flat_content")
	}
	// No enricher configured: metadata fields stay omitted.
	if _, ok := rec["header"]; ok {
		t.Error("header present without an enricher")
	}
}

func TestProcessDocument_ExtractionFailure(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{err: errors.New("exit status 1")}, "")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "bad.pdf", []byte("%PDF")))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["stage"] != "extracting" {
		t.Errorf("stage = %q, want extracting", body["stage"])
	}
}

func TestProcessDocument_RejectsNonPDF(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, "")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, uploadRequest(t, "notes.txt", []byte("plain text")))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestProcessDocument_MissingFilePart(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, "sekrit")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic sekrit", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer sekrit", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := uploadRequest(t, "doc.pdf", []byte("%PDF"))
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestAuth_HealthStaysOpen(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, "sekrit")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without auth", rr.Code)
	}
}
