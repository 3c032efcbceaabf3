package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sgaravatti/cantieri-docs/internal/config"
	"github.com/sgaravatti/cantieri-docs/internal/export"
	"github.com/sgaravatti/cantieri-docs/internal/ocr"
	"github.com/sgaravatti/cantieri-docs/internal/pipeline"
	"github.com/sgaravatti/cantieri-docs/internal/report"
	"github.com/sgaravatti/cantieri-docs/internal/repository"
	"github.com/sgaravatti/cantieri-docs/internal/storage"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

// setupTestServer wires the full stack against a temp sqlite database, with
// the stub recognizer and no extractor: the degraded path the pipeline
// guarantees for unconfigured deployments.
func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(dir, "test.db")}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := repository.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fm, err := storage.NewFileManager(dir, 1<<20)
	if err != nil {
		t.Fatalf("file manager: %v", err)
	}

	sites := repository.NewSiteRepository(db, nil)
	workers := repository.NewWorkerRepository(db, nil)
	docs := repository.NewDocumentRepository(db, nil)

	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Server.MaxUploadBytes = 1 << 20

	deps := Deps{
		DB:        db,
		Sites:     sites,
		Workers:   workers,
		Documents: docs,
		Files:     fm,
		Pipeline:  pipeline.New(nil, pipeline.Config{}, ocr.NewStubRecognizer(nil), nil),
		Export:    export.NewService(sites, workers, docs, nil),
		Report:    report.NewService(sites, workers, docs, nil),
	}
	return NewServer(cfg, deps, nil).Engine()
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func createSite(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	rec, body := doJSON(t, engine, http.MethodPost, "/api/sites", `{"name":"Cantiere Test","address":"Via Roma 1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create site: %d %s", rec.Code, rec.Body.String())
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("site id missing: %v", body)
	}
	return id
}

func TestHealthHandler(t *testing.T) {
	engine := setupTestServer(t)

	rec, body := doJSON(t, engine, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ok, _ := body["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, body=%v", body)
	}
}

func TestSiteCRUD(t *testing.T) {
	engine := setupTestServer(t)
	id := createSite(t, engine)

	rec, body := doJSON(t, engine, http.MethodGet, "/api/sites/"+id, "")
	if rec.Code != http.StatusOK || body["name"] != "Cantiere Test" {
		t.Fatalf("get site: %d %v", rec.Code, body)
	}

	rec, _ = doJSON(t, engine, http.MethodPut, "/api/sites/"+id, `{"name":"Cantiere Nuovo"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update site: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, engine, http.MethodDelete, "/api/sites/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete site: %d", rec.Code)
	}

	rec, _ = doJSON(t, engine, http.MethodGet, "/api/sites/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateSiteValidation(t *testing.T) {
	engine := setupTestServer(t)

	rec, _ := doJSON(t, engine, http.MethodPost, "/api/sites", `{"address":"no name"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name accepted: %d", rec.Code)
	}
	rec, _ = doJSON(t, engine, http.MethodPost, "/api/sites", `{"name":"X","start_date":"10/01/2025"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad start_date accepted: %d", rec.Code)
	}
}

func TestUploadMissingFile(t *testing.T) {
	engine := setupTestServer(t)
	id := createSite(t, engine)

	req := httptest.NewRequest(http.MethodPost, "/api/sites/"+id+"/documents", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("expected error message, got %s", rec.Body.String())
	}
}

func multipartUpload(t *testing.T, path, field, filename string, content []byte, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range extra {
		_ = w.WriteField(k, v)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadDocumentDegradedPath(t *testing.T) {
	engine := setupTestServer(t)
	id := createSite(t, engine)

	req := multipartUpload(t, "/api/sites/"+id+"/documents", "file", "tesserino.png", pngHeader, nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok, _ := body["ok"].(bool); !ok {
		t.Fatalf("ok=false: %v", body)
	}
	if stub, _ := body["ocr_stub"].(bool); !stub {
		t.Fatalf("stub recognizer must mark ocr_stub")
	}
	if nr, _ := body["needs_review"].(bool); !nr {
		t.Fatalf("degraded extraction must need review")
	}
	extracted, _ := body["extracted"].(map[string]any)
	if extracted["doc_type"] != "altro" {
		t.Fatalf("doc_type = %v, want altro", extracted["doc_type"])
	}
	if c, _ := body["confidence"].(float64); c != 0 {
		t.Fatalf("confidence = %v, want 0", c)
	}
	url, _ := body["url"].(string)
	if !strings.HasPrefix(url, "http://localhost:8080/files/") {
		t.Fatalf("url = %q", url)
	}

	// document is persisted and listed
	lrec, _ := doJSON(t, engine, http.MethodGet, "/api/sites/"+id+"/documents", "")
	if lrec.Code != http.StatusOK {
		t.Fatalf("list documents: %d", lrec.Code)
	}
	var docs []map[string]any
	if err := json.Unmarshal(lrec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(docs) != 1 || docs[0]["status"] != "NEEDS_REVIEW" {
		t.Fatalf("persisted documents: %v", docs)
	}
}

func TestUploadRejectsUnsupportedContent(t *testing.T) {
	engine := setupTestServer(t)
	id := createSite(t, engine)

	req := multipartUpload(t, "/api/sites/"+id+"/documents", "file", "doc.exe", []byte("MZ not a document"), nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestReviewDocumentFlow(t *testing.T) {
	engine := setupTestServer(t)
	siteID := createSite(t, engine)

	rec, worker := doJSON(t, engine, http.MethodPost, "/api/sites/"+siteID+"/workers",
		`{"full_name":"Mario Rossi","role":"gruista"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create worker: %d %s", rec.Code, rec.Body.String())
	}
	workerID, _ := worker["id"].(string)

	req := multipartUpload(t, "/api/sites/"+siteID+"/documents", "file", "visita.png", pngHeader, nil)
	urec := httptest.NewRecorder()
	engine.ServeHTTP(urec, req)
	if urec.Code != http.StatusCreated {
		t.Fatalf("upload: %d", urec.Code)
	}
	var upload map[string]any
	_ = json.Unmarshal(urec.Body.Bytes(), &upload)
	doc, _ := upload["document"].(map[string]any)
	docID, _ := doc["id"].(string)

	payload := fmt.Sprintf(`{"worker_id":%q,"doc_type":"idoneita","holder_name":"Mario Rossi","issue_date":"2025-01-10","expiry_date":"2027-01-10"}`, workerID)
	rrec, reviewed := doJSON(t, engine, http.MethodPost, "/api/documents/"+docID+"/review", payload)
	if rrec.Code != http.StatusOK {
		t.Fatalf("review: %d %s", rrec.Code, rrec.Body.String())
	}
	// synonym is canonicalized on the way in
	if reviewed["doc_type"] != "visita_medica" {
		t.Fatalf("doc_type = %v", reviewed["doc_type"])
	}
	if nr, _ := reviewed["needs_review"].(bool); nr {
		t.Fatalf("review must clear the flag")
	}
	if reviewed["status"] != "EXTRACTED" {
		t.Fatalf("status = %v", reviewed["status"])
	}

	rec, _ = doJSON(t, engine, http.MethodPost, "/api/documents/"+docID+"/review", `{"doc_type":"patente nautica"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown doc_type accepted: %d", rec.Code)
	}
}

func TestExpiringDocumentsEndpoint(t *testing.T) {
	engine := setupTestServer(t)
	siteID := createSite(t, engine)

	req := multipartUpload(t, "/api/sites/"+siteID+"/documents", "file", "corso.png", pngHeader, nil)
	urec := httptest.NewRecorder()
	engine.ServeHTTP(urec, req)
	var upload map[string]any
	_ = json.Unmarshal(urec.Body.Bytes(), &upload)
	doc, _ := upload["document"].(map[string]any)
	docID, _ := doc["id"].(string)

	_, _ = doJSON(t, engine, http.MethodPost, "/api/documents/"+docID+"/review",
		`{"doc_type":"antincendio","holder_name":"Mario Rossi","expiry_date":"2026-06-01"}`)

	rec, _ := doJSON(t, engine, http.MethodGet, "/api/sites/"+siteID+"/documents/expiring?before=2026-12-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expiring: %d", rec.Code)
	}
	var docs []map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &docs)
	if len(docs) != 1 {
		t.Fatalf("expiring list = %v", docs)
	}

	rec, _ = doJSON(t, engine, http.MethodGet, "/api/sites/"+siteID+"/documents/expiring?before=01/01/2026", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad before accepted: %d", rec.Code)
	}
}

func TestExportRegisterEndpoint(t *testing.T) {
	engine := setupTestServer(t)
	siteID := createSite(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/api/sites/"+siteID+"/export", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("content type = %q", ct)
	}
	// xlsx is a zip container
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("body is not an xlsx archive")
	}
}
