package importer

import (
	"testing"

	"github.com/fumiama/go-docx"
)

func TestFromDocx(t *testing.T) {
	d := docx.New()
	d.AddParagraph().Style("Title").AddText("Draft Title")
	d.AddParagraph().Style("Heading2").AddText("Setup")
	para := d.AddParagraph()
	para.AddText("Plain ")
	para.AddText("bold").Bold()
	para.AddLink("site", "https://example.com/s")
	d.AddParagraph().Style("ListBullet").AddText("item")
	d.AddParagraph().AddText("   ")

	doc := fromDocx(d, "draft.docx")
	if doc.Title != "Draft Title" {
		t.Errorf("expected title %q, got %q", "Draft Title", doc.Title)
	}
	if len(doc.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(doc.Blocks))
	}

	if h := textAt(t, doc, 0); !h.IsHeading() || h.Style.Level != 2 || h.PlainText() != "Setup" {
		t.Errorf("expected h2 Setup, got %q %+v", h.PlainText(), h.Style)
	}

	body := textAt(t, doc, 1)
	if body.PlainText() != "Plain boldsite" {
		t.Errorf("unexpected body text %q", body.PlainText())
	}
	if len(body.Spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(body.Spans))
	}
	if len(body.Spans[1].Marks) != 1 || body.Spans[1].Marks[0] != "strong" {
		t.Errorf("expected strong span, got %v", body.Spans[1].Marks)
	}
	if len(body.MarkDefs) != 1 || body.MarkDefs[0].Target != "https://example.com/s" {
		t.Fatalf("expected link def, got %+v", body.MarkDefs)
	}
	if body.Spans[2].Marks[0] != body.MarkDefs[0].Key {
		t.Errorf("link span should reference its def, got %v", body.Spans[2].Marks)
	}

	if li := textAt(t, doc, 2); !li.IsListItem() || li.PlainText() != "item" {
		t.Errorf("expected list item, got %q %+v", li.PlainText(), li.Style)
	}
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"heading1", 1},
		{"heading6", 6},
		{"heading7", 0},
		{"heading", 0},
		{"normal", 0},
	}
	for _, tt := range tests {
		if got := docxHeadingLevel(tt.style); got != tt.want {
			t.Errorf("docxHeadingLevel(%q): expected %d, got %d", tt.style, tt.want, got)
		}
	}
}
