package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/config"
	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/pipeline"
)

const catalogueYAML = `offers:
  - key: night
    category: limited
    name: Night Navi
    keywords: [night]
    url: https://night.example/
`

func TestOpen_SQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "offers.yaml")
	if err := os.WriteFile(catPath, []byte(catalogueYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		StoreDriver:    config.DriverSQLite,
		SQLitePath:     filepath.Join(dir, "test.db"),
		CataloguePath:  catPath,
		LimitedMax:     2,
		SummaryHeading: "Wrap-up",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := Open(cfg, log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	if a.Local == nil {
		t.Fatal("expected a local store for the sqlite driver")
	}

	ctx := context.Background()
	doc := block.Document{ID: "n", Title: "Night work", Blocks: []block.Block{
		&block.TextBlock{ID: "h", Style: block.Heading(2), Spans: []block.Span{{Key: "s1", Text: "Wrap-up"}}},
		&block.TextBlock{ID: "p", Style: block.Paragraph(), Spans: []block.Span{{Key: "s2", Text: "Rest."}}},
	}}
	if _, err := a.Local.PutDocument(ctx, doc, "test"); err != nil {
		t.Fatalf("put: %v", err)
	}

	res := a.Worker.ProcessDocument(ctx, "t", pipeline.Spec{Op: engine.OpInject}, "n")
	if res.Status != pipeline.DocChanged {
		t.Fatalf("expected changed, got %+v", res)
	}

	rec, err := a.Store.FetchDocument(ctx, "n")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if embeds := rec.Doc.Embeds(); len(embeds) != 1 || embeds[0].OfferKey != "night" {
		t.Errorf("expected a stored night embed, got %+v", embeds)
	}
	if rec.Doc.IndexOf(embedID(rec.Doc)) < 2 {
		t.Errorf("expected the embed inside the summary section, got %v", rec.Doc.Blocks)
	}
	if _, ok := a.Stats.Snapshot()["fetch"]; !ok {
		t.Error("expected fetch stats from the measured store")
	}
}

func embedID(doc block.Document) string {
	if e := doc.Embeds(); len(e) > 0 {
		return e[0].ID
	}
	return ""
}

func TestOpen_MissingCatalogue(t *testing.T) {
	cfg := config.Config{StoreDriver: config.DriverSQLite, SQLitePath: ":memory:", CataloguePath: filepath.Join(t.TempDir(), "none.yaml")}
	if _, err := Open(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected an error for a missing catalogue")
	}
}
