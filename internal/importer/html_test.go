package importer

import (
	"strings"
	"testing"

	"github.com/dgallion1/offersplice/internal/block"
)

const pageHTML = `<html><head><title>Page Title</title></head><body>
<nav>skip me</nav>
<h2>Overview</h2>
<p>Some <em>styled</em>   text with a <a href="https://example.com/x">link</a>.</p>
<ul><li>alpha<ul><li>beta</li></ul></li><li>gamma</li></ul>
<p><img src="/img.png" alt="pic"></p>
<blockquote>wise words</blockquote>
<script>var x;</script>
</body></html>`

func TestHTMLImporter_Structure(t *testing.T) {
	p := &HTMLImporter{}
	doc, err := p.Import(strings.NewReader(pageHTML), "page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Page Title" {
		t.Errorf("expected title %q, got %q", "Page Title", doc.Title)
	}
	if len(doc.Blocks) != 7 {
		t.Fatalf("expected 7 blocks, got %d", len(doc.Blocks))
	}

	if h := textAt(t, doc, 0); !h.IsHeading() || h.Style.Level != 2 || h.PlainText() != "Overview" {
		t.Errorf("expected h2 Overview, got %q %+v", h.PlainText(), h.Style)
	}

	para := textAt(t, doc, 1)
	if got := para.PlainText(); got != "Some styled text with a link." {
		t.Errorf("unexpected paragraph text %q", got)
	}
	if len(para.MarkDefs) != 1 || para.MarkDefs[0].Target != "https://example.com/x" {
		t.Fatalf("expected one link def, got %+v", para.MarkDefs)
	}
	var emphasized, linked string
	for _, s := range para.Spans {
		for _, m := range s.Marks {
			switch m {
			case "em":
				emphasized += s.Text
			case para.MarkDefs[0].Key:
				linked += s.Text
			}
		}
	}
	if emphasized != "styled" || linked != "link" {
		t.Errorf("expected em %q and link %q, got %q and %q", "styled", "link", emphasized, linked)
	}

	items := []struct {
		text  string
		level int
	}{{"alpha", 1}, {"beta", 2}, {"gamma", 1}}
	for i, want := range items {
		tb := textAt(t, doc, 2+i)
		if !tb.IsListItem() || tb.PlainText() != want.text || tb.Style.Level != want.level {
			t.Errorf("item %d: expected %+v, got %q %+v", i, want, tb.PlainText(), tb.Style)
		}
	}

	img, ok := doc.Blocks[5].(*block.ImageBlock)
	if !ok || img.AssetRef != "/img.png" || img.Alt != "pic" {
		t.Errorf("expected image block, got %#v", doc.Blocks[5])
	}
	if q := textAt(t, doc, 6); q.Style.Name != "blockquote" || q.PlainText() != "wise words" {
		t.Errorf("expected blockquote, got %q %+v", q.PlainText(), q.Style)
	}
	if strings.Contains(doc.PlainText(), "skip me") || strings.Contains(doc.PlainText(), "var x") {
		t.Error("navigation and script content should be skipped")
	}
}

func TestHTMLImporter_TitleFallsBackToH1(t *testing.T) {
	p := &HTMLImporter{}
	doc, err := p.Import(strings.NewReader("<h1>Heading Title</h1><p>Body.</p>"), "fragment.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Heading Title" {
		t.Errorf("expected title %q, got %q", "Heading Title", doc.Title)
	}
	if len(doc.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(doc.Blocks))
	}
}

func TestCollapseSpace(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"   ", " "},
		{"a  b", "a b"},
		{"\n  lead", " lead"},
		{"trail \n", "trail "},
	}
	for _, tt := range tests {
		if got := collapseSpace(tt.in); got != tt.want {
			t.Errorf("collapseSpace(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
