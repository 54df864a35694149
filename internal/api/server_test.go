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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/config"
	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/offer"
	"github.com/dgallion1/offersplice/internal/pipeline"
	"github.com/dgallion1/offersplice/internal/store"
	"github.com/google/go-cmp/cmp"
)

const testKey = "secret"

type fakeStore struct {
	mu       sync.Mutex
	docs     map[string]block.Document
	order    []string
	replaced []string
}

func newFakeStore(docs ...block.Document) *fakeStore {
	s := &fakeStore{docs: make(map[string]block.Document)}
	for _, d := range docs {
		s.docs[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	return s
}

func (s *fakeStore) FetchDocument(_ context.Context, id string) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return store.Record{Doc: d.Clone()}, nil
}

func (s *fakeStore) ReplaceDocument(_ context.Context, id string, blocks []block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	d.Blocks = blocks
	s.docs[id] = d
	s.replaced = append(s.replaced, id)
	return nil
}

func (s *fakeStore) ListDocuments(_ context.Context, f store.Filter) ([]store.Head, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Head
	for _, id := range s.order {
		d := s.docs[id]
		if f.Category != "" && d.Category != f.Category {
			continue
		}
		out = append(out, store.Head{ID: d.ID, Title: d.Title, Slug: d.Slug, Category: d.Category})
	}
	return out, nil
}

type fakePutter struct {
	docs   []block.Document
	source string
}

func (p *fakePutter) PutDocument(_ context.Context, doc block.Document, source string) (bool, error) {
	p.docs = append(p.docs, doc)
	p.source = source
	return true, nil
}

func testDocs() []block.Document {
	return []block.Document{
		{ID: "a", Title: "Night shift tips", Category: "work", Blocks: []block.Block{
			&block.TextBlock{ID: "a1", Style: block.Paragraph(), Spans: []block.Span{{Text: "Sleep well."}}},
		}},
		{ID: "b", Title: "Cooking", Category: "food"},
	}
}

func newTestServer(t *testing.T, st store.Store, mod func(*Services)) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := &offer.Catalogue{Registry: offer.MustRegistry(
		offer.Offer{Key: "night", Category: offer.Limited, DisplayName: "Night Navi", Keywords: []string{"night"}, URL: "https://night.example/", Active: true},
	)}
	eng := engine.New(cat, engine.Options{})
	orch := pipeline.NewOrchestrator(pipeline.NewWorker(st, eng, log, 0), time.Hour, 2, log)

	svc := Services{Orchestrator: orch, Engine: eng, Store: st}
	if mod != nil {
		mod(&svc)
	}
	cfg := config.Config{APIKey: testKey, StoreDriver: config.DriverCMS, MaxImportBytes: 1 << 20}
	return NewServer(svc, log, cfg)
}

func do(t *testing.T, srv http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong key", "Bearer nope"},
		{"wrong scheme", "Basic " + testKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestListDocuments(t *testing.T) {
	srv := newTestServer(t, newFakeStore(testDocs()...), nil)

	rec := do(t, srv, http.MethodGet, "/api/documents?category=work", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var got struct {
		Documents []store.Head `json:"documents"`
	}
	decode(t, rec, &got)
	want := []store.Head{{ID: "a", Title: "Night shift tips", Category: "work"}}
	if diff := cmp.Diff(want, got.Documents); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, srv, http.MethodGet, "/api/documents?limit=x", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestSuggestions(t *testing.T) {
	srv := newTestServer(t, newFakeStore(testDocs()...), nil)

	rec := do(t, srv, http.MethodGet, "/api/documents/a/suggestions", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var got struct {
		Suggestions []suggestionJSON `json:"suggestions"`
	}
	decode(t, rec, &got)
	want := []suggestionJSON{{Key: "night", Category: "limited", DisplayName: "Night Navi", Score: 1}}
	if diff := cmp.Diff(want, got.Suggestions); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, srv, http.MethodGet, "/api/documents/zzz/suggestions", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

type applyResponse struct {
	DryRun      bool               `json:"dry_run"`
	ChangeCount int                `json:"change_count"`
	Result      pipeline.DocResult `json:"result"`
}

func TestApply_DryRun(t *testing.T) {
	st := newFakeStore(testDocs()...)
	srv := newTestServer(t, st, nil)

	rec := do(t, srv, http.MethodPost, "/api/documents/a/inject?dry_run=true", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var got applyResponse
	decode(t, rec, &got)
	if !got.DryRun || got.ChangeCount == 0 || got.Result.Status != pipeline.DocChanged {
		t.Errorf("unexpected response %+v", got)
	}
	if !strings.Contains(got.Result.Diff, "[embed] night") {
		t.Errorf("expected diff with the embed, got %q", got.Result.Diff)
	}
	if got.Result.Document == nil || len(got.Result.Document.Embeds()) != 1 {
		t.Errorf("expected the transformed document, got %+v", got.Result.Document)
	}
	if len(st.replaced) != 0 {
		t.Errorf("dry run must not write, got %v", st.replaced)
	}
}

func TestApply_Writes(t *testing.T) {
	st := newFakeStore(testDocs()...)
	srv := newTestServer(t, st, nil)

	rec := do(t, srv, http.MethodPost, "/api/documents/a/inject", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var got applyResponse
	decode(t, rec, &got)
	if got.DryRun || got.Result.Document != nil {
		t.Errorf("expected a write without the document attached, got %+v", got)
	}
	if len(st.replaced) != 1 || st.replaced[0] != "a" {
		t.Errorf("expected a replaced, got %v", st.replaced)
	}
}

func TestApply_BadRequests(t *testing.T) {
	srv := newTestServer(t, newFakeStore(testDocs()...), nil)
	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown op", "/api/documents/a/explode", http.StatusBadRequest},
		{"bad dry_run", "/api/documents/a/inject?dry_run=maybe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, srv, http.MethodPost, tt.path, nil, ""); rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	srv := newTestServer(t, newFakeStore(testDocs()...), nil)

	body := strings.NewReader(`{"op":"inject","ids":["a"],"dry_run":true}`)
	rec := do(t, srv, http.MethodPost, "/api/runs", body, "application/json")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var submitted struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		PollURL string `json:"poll_url"`
	}
	decode(t, rec, &submitted)
	if submitted.Status != string(pipeline.StatusQueued) || submitted.PollURL != "/api/runs/"+submitted.RunID {
		t.Errorf("unexpected submit response %+v", submitted)
	}

	rec = do(t, srv, http.MethodGet, submitted.PollURL, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap pipeline.RunSnapshot
	decode(t, rec, &snap)
	if snap.ID != submitted.RunID || snap.Spec.Op != engine.OpInject || !snap.Spec.DryRun {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	rec = do(t, srv, http.MethodGet, "/api/runs", nil, "")
	var listed struct {
		Runs []struct {
			ID string `json:"run_id"`
		} `json:"runs"`
	}
	decode(t, rec, &listed)
	if len(listed.Runs) != 1 || listed.Runs[0].ID != submitted.RunID {
		t.Errorf("unexpected run list %+v", listed)
	}

	if rec := do(t, srv, http.MethodGet, "/api/runs/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/runs", strings.NewReader(`{"op":"nope"}`), "application/json"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown op, got %d", rec.Code)
	}
}

func TestRuns_QueueFull(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)
	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodPost, "/api/runs", strings.NewReader(`{"op":"restore"}`), ""); rec.Code != http.StatusAccepted {
			t.Fatalf("submit %d: expected 202, got %d", i, rec.Code)
		}
	}
	if rec := do(t, srv, http.MethodPost, "/api/runs", strings.NewReader(`{"op":"restore"}`), ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 on a full queue, got %d", rec.Code)
	}
}

func TestStoreStats(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)
	if rec := do(t, srv, http.MethodGet, "/api/stats/store", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without stats, got %d", rec.Code)
	}

	stats := store.NewStats(time.Minute)
	measured := store.Measured{Store: newFakeStore(testDocs()...), Stats: stats}
	srv = newTestServer(t, measured, func(s *Services) { s.Stats = stats })
	do(t, srv, http.MethodGet, "/api/documents", nil, "")

	rec := do(t, srv, http.MethodGet, "/api/stats/store", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Driver string                         `json:"driver"`
		Stats  map[string]store.StatsSnapshot `json:"stats"`
	}
	decode(t, rec, &got)
	if got.Driver != config.DriverCMS {
		t.Errorf("expected driver %q, got %q", config.DriverCMS, got.Driver)
	}
	if _, ok := got.Stats["list"]; !ok {
		t.Errorf("expected list stats, got %+v", got.Stats)
	}
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImport(t *testing.T) {
	putter := &fakePutter{}
	srv := newTestServer(t, newFakeStore(), func(s *Services) { s.Local = putter })

	body, ct := multipartBody(t, "night-guide.md", "# Night Guide\n\nSleep in the day.\n", map[string]string{"category": "work"})
	rec := do(t, srv, http.MethodPost, "/api/import", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var got struct {
		DocID  string `json:"doc_id"`
		Title  string `json:"title"`
		Blocks int    `json:"blocks"`
	}
	decode(t, rec, &got)
	if got.DocID != "night-guide" || got.Title != "Night Guide" || got.Blocks != 1 {
		t.Errorf("unexpected response %+v", got)
	}
	if len(putter.docs) != 1 || putter.docs[0].Category != "work" || putter.source != "import:night-guide.md" {
		t.Errorf("unexpected stored document %+v from %q", putter.docs, putter.source)
	}
}

func TestImport_Rejections(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)
	body, ct := multipartBody(t, "a.md", "text", nil)
	if rec := do(t, srv, http.MethodPost, "/api/import", body, ct); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a local store, got %d", rec.Code)
	}

	srv = newTestServer(t, newFakeStore(), func(s *Services) { s.Local = &fakePutter{} })
	body, ct = multipartBody(t, "a.exe", "MZ", nil)
	if rec := do(t, srv, http.MethodPost, "/api/import", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"guide.md", "guide.md"},
		{"../../etc/passwd", "passwd"},
		{"a..b.txt", "a_b.txt"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
