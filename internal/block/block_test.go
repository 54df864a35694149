package block

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const storedDoc = `{
  "_id": "post-1",
  "title": "夜勤のコツ",
  "slug": "night-shift-tips",
  "category": "career",
  "body": [
    {"_type": "block", "_key": "h1", "style": "h2", "children": [{"_type": "span", "_key": "s1", "text": "はじめに", "marks": []}], "markDefs": []},
    {"_type": "block", "_key": "p1", "style": "normal", "children": [
      {"_type": "span", "_key": "s2", "text": "詳しくは", "marks": []},
      {"_type": "span", "_key": "s3", "text": "こちら", "marks": ["m1", "strong"]}
    ], "markDefs": [{"_type": "link", "_key": "m1", "href": "https://example.com/a"}]},
    {"_type": "block", "_key": "li1", "style": "normal", "listItem": "number", "level": 2, "children": [{"_type": "span", "_key": "s4", "text": "項目", "marks": []}], "markDefs": []},
    {"_type": "image", "_key": "img1", "asset": {"_type": "reference", "_ref": "image-abc"}, "alt": "photo"},
    {"_type": "offerEmbed", "_key": "e1", "provider": "offer", "offerKey": "a", "bundledOfferKeys": ["b"], "html": "<div></div>"},
    {"_type":"youtube","_key":"yt1","url":"https://youtu.be/x"}
  ]
}`

func TestDocument_UnmarshalJSON(t *testing.T) {
	var doc Document
	if err := json.Unmarshal([]byte(storedDoc), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Block{
		&TextBlock{ID: "h1", Style: Heading(2), Spans: []Span{{Key: "s1", Text: "はじめに"}}},
		&TextBlock{
			ID:    "p1",
			Style: Paragraph(),
			Spans: []Span{
				{Key: "s2", Text: "詳しくは"},
				{Key: "s3", Text: "こちら", Marks: []string{"m1", "strong"}},
			},
			MarkDefs: []MarkDef{{Key: "m1", Kind: "link", Target: "https://example.com/a"}},
		},
		&TextBlock{ID: "li1", Style: Style{Kind: StyleListItem, Level: 2, ListType: "number"}, Spans: []Span{{Key: "s4", Text: "項目"}}},
		&ImageBlock{ID: "img1", AssetRef: "image-abc", Alt: "photo"},
		&EmbedBlock{ID: "e1", Provider: "offer", OfferKey: "a", Bundled: []string{"b"}, Markup: "<div></div>"},
	}
	if diff := cmp.Diff(want, doc.Blocks[:5]); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}

	op, ok := doc.Blocks[5].(*OpaqueBlock)
	if !ok {
		t.Fatalf("expected *OpaqueBlock, got %T", doc.Blocks[5])
	}
	if op.Type != "youtube" || op.ID != "yt1" {
		t.Errorf("expected youtube/yt1, got %s/%s", op.Type, op.ID)
	}
	if doc.Title != "夜勤のコツ" || doc.Slug != "night-shift-tips" || doc.Category != "career" {
		t.Errorf("metadata not decoded: %+v", doc)
	}
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	var doc Document
	if err := json.Unmarshal([]byte(storedDoc), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"url":"https://youtu.be/x"`) {
		t.Errorf("opaque block content lost: %s", data)
	}

	var again Document
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
}

func TestUnmarshalBlocks_MissingType(t *testing.T) {
	_, err := UnmarshalBlocks([]byte(`[{"_key": "x"}]`))
	if err == nil {
		t.Fatal("expected error for block without _type")
	}
}

func TestMarshalBlocks_EmptyTextFields(t *testing.T) {
	data, err := MarshalBlocks([]Block{&TextBlock{ID: "p", Style: Paragraph()}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"children":[]`, `"markDefs":[]`, `"style":"normal"`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}
}

func TestSections(t *testing.T) {
	blocks := []Block{
		&TextBlock{ID: "p0", Style: Paragraph(), Spans: []Span{{Text: "lead"}}},
		&TextBlock{ID: "h1", Style: Heading(2), Spans: []Span{{Text: " A "}}},
		&TextBlock{ID: "h2", Style: Heading(3), Spans: []Span{{Text: "A.1"}}},
		&TextBlock{ID: "p1", Style: Paragraph()},
		&TextBlock{ID: "h3", Style: Heading(2), Spans: []Span{{Text: "B"}}},
	}
	want := []Section{
		{Heading: "A", Level: 2, Start: 1, End: 4},
		{Heading: "A.1", Level: 3, Start: 2, End: 4},
		{Heading: "B", Level: 2, Start: 4, End: 5},
	}
	if diff := cmp.Diff(want, Sections(blocks)); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}

	if got := NearestHeading(blocks, 4); got != "A.1" {
		t.Errorf("expected nearest heading %q, got %q", "A.1", got)
	}
	if got := NearestHeading(blocks, 1); got != "" {
		t.Errorf("expected no heading before index 1, got %q", got)
	}
	if !HasHeadings(blocks) || HasHeadings(blocks[:1]) {
		t.Error("HasHeadings gave the wrong answer")
	}
}

func TestUniqueKey(t *testing.T) {
	k := NewKey("cta", "offer-a")
	if len(k) != 12 {
		t.Fatalf("expected 12-char key, got %q", k)
	}
	if k != NewKey("cta", "offer-a") {
		t.Error("expected NewKey to be deterministic")
	}
	if k == NewKey("embed", "offer-a") {
		t.Error("expected different roles to give different keys")
	}

	taken := map[string]bool{k: true}
	k2 := UniqueKey(taken, "cta", "offer-a")
	if k2 == k {
		t.Fatalf("expected a fresh key, got the taken one %q", k2)
	}
	if !taken[k2] {
		t.Error("expected UniqueKey to reserve the returned key")
	}
	if k3 := UniqueKey(taken, "cta", "offer-a"); k3 == k || k3 == k2 {
		t.Errorf("expected a third distinct key, got %q", k3)
	}
}

func TestClone_Independent(t *testing.T) {
	tb := &TextBlock{ID: "p", Spans: []Span{{Text: "x", Marks: []string{"m"}}}}
	c := Clone(tb).(*TextBlock)
	c.Spans[0].Marks[0] = "changed"
	if tb.Spans[0].Marks[0] != "m" {
		t.Error("clone shares mark storage with the original")
	}
}

func TestParseMarkup(t *testing.T) {
	info := ParseMarkup(`<div class="offer-card" data-offer-key="a" data-offer-keys="a b"><a href="https://x.example/1">X</a><a href=" https://y.example/ ">Y</a></div>`)
	if diff := cmp.Diff([]string{"a", "b"}, info.OfferKeys); diff != "" {
		t.Errorf("offer keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"https://x.example/1", "https://y.example/"}, info.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}
