package cms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/store"
)

const docJSON = `{
  "_id": "post-1",
  "_rev": "rev-7",
  "_updatedAt": "2026-03-01T10:00:00Z",
  "title": "夜勤のコツ",
  "slug": "night",
  "body": [{"_type": "block", "_key": "p1", "style": "normal", "children": [{"_type": "span", "_key": "s", "text": "hi", "marks": []}], "markDefs": []}]
}`

func TestFetchDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("dataset") != "production" {
			t.Errorf("expected dataset=production, got %q", r.URL.RawQuery)
		}
		switch r.URL.Path {
		case "/documents/post-1":
			io.WriteString(w, docJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "production")
	defer c.Close()

	rec, err := c.FetchDocument(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Revision != "rev-7" || rec.UpdatedAt.IsZero() {
		t.Errorf("revision metadata not decoded: %+v", rec)
	}
	if rec.Doc.Title != "夜勤のコツ" || len(rec.Doc.Blocks) != 1 {
		t.Errorf("document not decoded: %+v", rec.Doc)
	}

	_, err = c.FetchDocument(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceDocument(t *testing.T) {
	var got []block.Block
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/documents/post-1/body" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Body json.RawMessage `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		blocks, err := block.UnmarshalBlocks(req.Body)
		if err != nil {
			t.Errorf("decode blocks: %v", err)
		}
		got = blocks
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	blocks := []block.Block{
		&block.TextBlock{ID: "p", Style: block.Paragraph(), Spans: []block.Span{{Key: "s", Text: "x"}}},
		&block.EmbedBlock{ID: "e", Provider: "offer", OfferKey: "k", Markup: "<div></div>"},
	}
	c := NewClient(srv.URL, "tok", "")
	if err := c.ReplaceDocument(context.Background(), "post-1", blocks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(blocks, got); diff != "" {
		t.Errorf("sent blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		c := NewClient(srv.URL, "tok", "")
		err := c.ReplaceDocument(context.Background(), "x", nil)
		if err == nil {
			t.Errorf("status %d: expected error", tt.status)
		} else if store.IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: expected retryable=%v, got %v", tt.status, tt.retryable, err)
		}
		srv.Close()
	}
}

func TestListDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("slug") != "night" || q.Get("limit") != "5" || len(q["id"]) != 2 {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"documents": [{"id": "a", "title": "A", "slug": "night"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "")
	heads, err := c.ListDocuments(context.Background(), store.Filter{IDs: []string{"a", "b"}, Slug: "night", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []store.Head{{ID: "a", Title: "A", Slug: "night"}}
	if diff := cmp.Diff(want, heads); diff != "" {
		t.Errorf("heads mismatch (-want +got):\n%s", diff)
	}
}
