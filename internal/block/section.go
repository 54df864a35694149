package block

import "strings"

// Section is a derived heading-delimited run of blocks, [Start, End).
type Section struct {
	Heading string // Trimmed heading text
	Level   int
	Start   int // Index of the heading block
	End     int // Index of the next heading at the same or a higher level, or len(blocks)
}

// HeadingAt returns the heading block at index i, if there is one.
func HeadingAt(blocks []Block, i int) (*TextBlock, bool) {
	if i < 0 || i >= len(blocks) {
		return nil, false
	}
	tb, ok := blocks[i].(*TextBlock)
	if !ok || !tb.IsHeading() {
		return nil, false
	}
	return tb, true
}

// HeadingText returns the trimmed text of a heading block.
func HeadingText(tb *TextBlock) string {
	return strings.TrimSpace(tb.PlainText())
}

// Sections derives every heading section of the block sequence in order.
// Blocks before the first heading belong to no section.
func Sections(blocks []Block) []Section {
	var out []Section
	for i := range blocks {
		h, ok := HeadingAt(blocks, i)
		if !ok {
			continue
		}
		sec := Section{Heading: HeadingText(h), Level: h.Style.Level, Start: i, End: len(blocks)}
		for j := i + 1; j < len(blocks); j++ {
			if next, ok := HeadingAt(blocks, j); ok && next.Style.Level <= sec.Level {
				sec.End = j
				break
			}
		}
		out = append(out, sec)
	}
	return out
}

// HasHeadings reports whether any block is a heading.
func HasHeadings(blocks []Block) bool {
	for i := range blocks {
		if _, ok := HeadingAt(blocks, i); ok {
			return true
		}
	}
	return false
}

// NearestHeading returns the text of the closest heading strictly before
// index idx, or "" if there is none.
func NearestHeading(blocks []Block, idx int) string {
	if idx > len(blocks) {
		idx = len(blocks)
	}
	for i := idx - 1; i >= 0; i-- {
		if h, ok := HeadingAt(blocks, i); ok {
			return HeadingText(h)
		}
	}
	return ""
}
