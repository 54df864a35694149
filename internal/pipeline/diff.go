package pipeline

import (
	"fmt"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Outline renders one line per block for diffing.
func Outline(doc block.Document) string {
	var sb strings.Builder
	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case *block.TextBlock:
			fmt.Fprintf(&sb, "[%s] %s", styleTag(v.Style), strings.ReplaceAll(v.PlainText(), "\n", " "))
			for _, m := range v.MarkDefs {
				if m.IsLink() {
					fmt.Fprintf(&sb, " <%s>", m.Target)
				}
			}
		case *block.EmbedBlock:
			fmt.Fprintf(&sb, "[embed] %s", strings.Join(v.OfferKeys(), ","))
		case *block.ImageBlock:
			fmt.Fprintf(&sb, "[image] %s", v.AssetRef)
		case *block.OpaqueBlock:
			fmt.Fprintf(&sb, "[%s]", v.Type)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func styleTag(s block.Style) string {
	switch s.Kind {
	case block.StyleHeading:
		return fmt.Sprintf("h%d", s.Level)
	case block.StyleListItem:
		return fmt.Sprintf("li%d", s.Level)
	}
	if s.Name != "" {
		return s.Name
	}
	return "p"
}

// TextDiff is a line diff of the two documents' outlines. Only added and
// removed lines are printed, prefixed "+ " and "- ".
func TextDiff(before, after block.Document) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(Outline(before), Outline(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}
	return sb.String()
}
