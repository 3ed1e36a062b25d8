package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/dgallion1/docsearch/internal/aggregate"
	"github.com/dgallion1/docsearch/internal/config"
	"github.com/dgallion1/docsearch/internal/docs"
	"github.com/dgallion1/docsearch/internal/pipeline"
	"github.com/dgallion1/docsearch/internal/roles"
	"github.com/dgallion1/docsearch/internal/searchstore/blevestore"
	"github.com/dgallion1/docsearch/internal/stats"
)

const testSecret = "test-secret"

type testEnv struct {
	srv *Server
	svc *docs.Service
	cfg config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := blevestore.New("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	reg := stats.NewRegistry(time.Hour)
	svc := docs.NewService(stats.Instrument(store, reg), log, docs.Options{})
	if err := svc.EnsureIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.JWTSecret = testSecret
	cfg.Backend = config.BackendBleve
	cfg.WorkerCount = 1
	cfg.UploadDir = t.TempDir()
	cfg.MaxUploadBytes = 1 << 20

	orch := pipeline.NewOrchestrator(cfg, svc, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return &testEnv{srv: NewServer(svc, orch, reg, log, cfg), svc: svc, cfg: cfg}
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, "tester", role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, role string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, callerRole, filename, content, docRole string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	if docRole != "" {
		mw.WriteField("role", docRole)
	}
	mw.Close()
	return e.do(t, http.MethodPost, "/api/documents", callerRole, &buf, mw.FormDataContentType())
}

func (e *testEnv) waitJob(t *testing.T, jobID, role string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := e.do(t, http.MethodGet, "/api/jobs/"+jobID, role, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("job status: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var snap pipeline.JobSnapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatal(err)
		}
		if snap.Status.Done() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return pipeline.JobSnapshot{}
}

func (e *testEnv) seed(t *testing.T, id, name, text, role string) {
	t.Helper()
	_, err := e.svc.Ingest(context.Background(), docs.IngestRequest{ID: id, FileName: name, Text: text, Role: role})
	if err != nil {
		t.Fatal(err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/documents", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", rec.Code)
	}

	expired, err := IssueToken(testSecret, "tester", roles.User, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token: expected 401, got %d", rec.Code)
	}

	forged, err := IssueToken("other-secret", "tester", roles.Admin, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", rec.Code)
	}
}

func TestParseToken_RequiresRole(t *testing.T) {
	tok, err := IssueToken(testSecret, "tester", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(testSecret, tok); err == nil {
		t.Error("expected token without role to be rejected")
	}

	tok, err = IssueToken(testSecret, "tester", roles.Editor, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(testSecret, tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Role != roles.Editor || claims.Subject != "tester" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestUploadThenSearchAndGet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, roles.Editor, "q3.txt", "The invoice total for Q3 was 1200 dollars.", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decode[map[string]string](t, rec)
	snap := env.waitJob(t, accepted["job_id"], roles.Editor)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	docID := accepted["doc_id"]

	rec = env.do(t, http.MethodGet, "/api/search?q=invoice+total", roles.Editor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	found := decode[struct {
		Results []aggregate.SearchResult `json:"results"`
	}](t, rec)
	if len(found.Results) != 1 || found.Results[0].ID != docID {
		t.Fatalf("expected one hit for %s, got %+v", docID, found.Results)
	}
	if found.Results[0].Role != roles.Editor {
		t.Errorf("expected document role Editor, got %q", found.Results[0].Role)
	}

	rec = env.do(t, http.MethodGet, "/api/documents/"+docID, roles.Editor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	doc := decode[aggregate.Document](t, rec)
	if doc.Content != "The invoice total for Q3 was 1200 dollars." {
		t.Errorf("unexpected content %q", doc.Content)
	}
	if doc.ContentType != "text/plain" {
		t.Errorf("expected text/plain, got %q", doc.ContentType)
	}

	// A User cannot see an Editor document or its job.
	rec = env.do(t, http.MethodGet, "/api/documents/"+docID, roles.User, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for less privileged caller, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/jobs/"+accepted["job_id"], roles.User, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected job to be hidden from less privileged caller, got %d", rec.Code)
	}
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		caller   string
		filename string
		docRole  string
		want     int
	}{
		{"user cannot upload", roles.User, "a.txt", "", http.StatusForbidden},
		{"unsupported type", roles.Editor, "a.exe", "", http.StatusBadRequest},
		{"unknown role", roles.Editor, "a.txt", "Contractor", http.StatusBadRequest},
		{"role above caller", roles.Editor, "a.txt", roles.Admin, http.StatusForbidden},
		{"role below caller", roles.Editor, "a.txt", "user", http.StatusAccepted},
	}
	for _, tt := range tests {
		rec := env.upload(t, tt.caller, tt.filename, "hello", tt.docRole)
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, rec.Code, rec.Body.String())
		}
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.MaxUploadBytes = 10

	rec := env.upload(t, roles.Editor, "big.txt", "this is more than ten bytes", "")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestListAndBlankSearchRespectRoles(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "d-admin", "admin.txt", "board minutes", roles.Admin)
	env.seed(t, "d-internal", "internal.txt", "staff handbook", roles.Internal)
	env.seed(t, "d-user", "user.txt", "public faq", roles.User)

	type listing struct {
		Documents []aggregate.Document `json:"documents"`
		Total     int                  `json:"total"`
	}

	for _, path := range []string{"/api/documents", "/api/search?q=", "/api/search?q=+++"} {
		rec := env.do(t, http.MethodGet, path, roles.Internal, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		got := decode[listing](t, rec)
		if got.Total != 2 {
			t.Errorf("%s: expected 2 documents for Internal, got %d", path, got.Total)
		}
		for _, d := range got.Documents {
			if d.ID == "d-admin" {
				t.Errorf("%s: Internal caller saw an Admin document", path)
			}
		}
	}

	rec := env.do(t, http.MethodGet, "/api/documents", roles.Admin, nil, "")
	if got := decode[listing](t, rec); got.Total != 3 {
		t.Errorf("expected 3 documents for Admin, got %d", got.Total)
	}
}

func TestSearchProximity(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "d1", "a.txt", "invoice total due", roles.User)

	rec := env.do(t, http.MethodGet, "/api/search?q=invoice+total&proximity=abc", roles.User, nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad proximity, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/search?q=invoice+total&proximity=3", roles.User, nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, roles.Editor, "notes.md", "# Notes\n\nremove me", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	accepted := decode[map[string]string](t, rec)
	env.waitJob(t, accepted["job_id"], roles.Editor)
	docID := accepted["doc_id"]

	rec = env.do(t, http.MethodGet, "/api/documents/"+docID, roles.Editor, nil, "")
	stored := decode[aggregate.Document](t, rec).FilePath
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("expected stored upload at %q: %v", stored, err)
	}

	rec = env.do(t, http.MethodDelete, "/api/documents/"+docID, roles.User, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for User delete, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/documents/"+docID, roles.Editor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Errorf("expected stored upload to be removed, stat err=%v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/documents/"+docID, roles.Editor, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/documents/"+docID, roles.Editor, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestReindexEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "d1", "a.txt", "alpha", roles.User)
	env.seed(t, "d2", "b.txt", "beta", roles.Editor)

	rec := env.do(t, http.MethodPost, "/api/reindex", roles.Editor, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for Editor, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/reindex", roles.Admin, nil, "")
	if rec.Code != http.StatusAccepted && rec.Code != http.StatusConflict {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	jobID := decode[map[string]string](t, rec)["job_id"]

	rec = env.do(t, http.MethodGet, "/api/jobs/"+jobID, roles.Editor, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected reindex job hidden from Editor, got %d", rec.Code)
	}

	snap := env.waitJob(t, jobID, roles.Admin)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Indexed != 2 {
		t.Errorf("expected 2 documents reindexed, got %d", snap.Progress.Indexed)
	}

	rec = env.do(t, http.MethodGet, "/api/documents", roles.Admin, nil, "")
	if got := decode[struct {
		Total int `json:"total"`
	}](t, rec); got.Total != 2 {
		t.Errorf("expected corpus intact after reindex, got %d", got.Total)
	}
}

func TestBackendStats(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "d1", "a.txt", "alpha", roles.User)

	rec := env.do(t, http.MethodGet, "/api/stats/backend", roles.Editor, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for Editor, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/stats/backend", roles.Admin, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[struct {
		Backend    string                    `json:"backend"`
		Operations map[string]stats.Snapshot `json:"operations"`
	}](t, rec)
	if body.Backend != config.BackendBleve {
		t.Errorf("expected bleve backend, got %q", body.Backend)
	}
	if body.Operations["put"].Count == 0 {
		t.Errorf("expected put latency samples, got %+v", body.Operations)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\doc.txt`: "doc.txt",
		"":                    "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
