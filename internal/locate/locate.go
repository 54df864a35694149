// Package locate finds splice indexes in a block sequence.
package locate

import (
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
)

// Markers names the structural sections of an article.
type Markers struct {
	Summary    string   // exact summary heading text
	Related    []string // related-reading heading keywords
	References []string // references heading/marker keywords
	Disclaimer []string // disclaimer heading/marker keywords
}

// DefaultMarkers returns the markers used by the blog's article templates.
func DefaultMarkers() Markers {
	return Markers{
		Summary:    "まとめ",
		Related:    []string{"関連記事", "あわせて読みたい", "合わせて読みたい", "related"},
		References: []string{"参考文献", "参考資料", "参考サイト", "出典", "references"},
		Disclaimer: []string{"免責事項", "免責", "disclaimer"},
	}
}

// IsSummary reports whether tb is the summary heading.
func (m Markers) IsSummary(tb *block.TextBlock) bool {
	return tb.IsHeading() && m.Summary != "" && block.HeadingText(tb) == m.Summary
}

// IsTrailingMarker reports whether b opens the references or disclaimer
// tail of an article. Headings and plain paragraphs both qualify.
func (m Markers) IsTrailingMarker(b block.Block) bool {
	tb, ok := b.(*block.TextBlock)
	if !ok || tb.IsListItem() {
		return false
	}
	text := strings.ToLower(strings.TrimLeft(strings.TrimSpace(tb.PlainText()), "※【■●◆[〔 "))
	for _, kws := range [][]string{m.References, m.Disclaimer} {
		for _, kw := range kws {
			if kw != "" && strings.HasPrefix(text, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// Position is a splice index. Anchored is false when the structural
// anchor was missing and Index fell back to the document end.
type Position struct {
	Index    int
	Anchored bool
	Anchor   int // index of the anchor heading, -1 when not anchored
}

func end(blocks []block.Block) Position {
	return Position{Index: len(blocks), Anchor: -1}
}

// SummaryIndex returns the index of the summary heading, or -1.
func SummaryIndex(blocks []block.Block, m Markers) int {
	for i := range blocks {
		if h, ok := block.HeadingAt(blocks, i); ok && m.IsSummary(h) {
			return i
		}
	}
	return -1
}

// Summary locates the end of the summary section: the next heading at the
// summary's level or above, or a trailing references/disclaimer marker,
// whichever comes first, else the document end. Without a summary heading
// the position is the document end.
func Summary(blocks []block.Block, m Markers) Position {
	s := SummaryIndex(blocks, m)
	if s < 0 {
		return end(blocks)
	}
	level := blocks[s].(*block.TextBlock).Style.Level
	for j := s + 1; j < len(blocks); j++ {
		if h, ok := block.HeadingAt(blocks, j); ok && h.Style.Level <= level {
			return Position{Index: j, Anchored: true, Anchor: s}
		}
		if m.IsTrailingMarker(blocks[j]) {
			return Position{Index: j, Anchored: true, Anchor: s}
		}
	}
	return Position{Index: len(blocks), Anchored: true, Anchor: s}
}

// Section locates the first section whose heading contains any keyword and
// returns the index one past its last plain paragraph. List items and
// styled paragraphs such as blockquotes never count as the insertion point. A matched section with
// no paragraph yields the index just after its heading.
func Section(blocks []block.Block, keywords []string) Position {
	for _, sec := range block.Sections(blocks) {
		if !containsAny(sec.Heading, keywords) {
			continue
		}
		idx := sec.Start + 1
		for j := sec.Start + 1; j < sec.End; j++ {
			if tb, ok := blocks[j].(*block.TextBlock); ok && tb.IsParagraph() && tb.Style.Name == "" {
				idx = j + 1
			}
		}
		return Position{Index: idx, Anchored: true, Anchor: sec.Start}
	}
	return end(blocks)
}

func containsAny(text string, keywords []string) bool {
	t := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(t, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
