package mutate

import (
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/locate"
)

type sectionKind int

const (
	kindNone sectionKind = iota
	kindSummary
	kindRelated
	kindReferences
	kindDisclaimer
)

// Reorder puts the named sections into canonical order: body content,
// summary, related reading, references, disclaimer. Each named section
// runs from its heading to the next named heading. Only headings at or
// above the summary level are considered. Without a summary heading the
// document is returned unchanged with ErrAmbiguousSection.
func (a *Applier) Reorder(doc block.Document) (block.Document, bool, error) {
	s := locate.SummaryIndex(doc.Blocks, a.Markers)
	if s < 0 {
		return doc, false, ErrAmbiguousSection
	}
	level := doc.Blocks[s].(*block.TextBlock).Style.Level

	type run struct {
		kind  sectionKind
		start int
	}
	var runs []run
	for i := range doc.Blocks {
		h, ok := block.HeadingAt(doc.Blocks, i)
		if !ok || h.Style.Level > level {
			continue
		}
		if k := a.classify(h); k != kindNone {
			runs = append(runs, run{kind: k, start: i})
		}
	}

	buckets := make(map[sectionKind][]block.Block)
	content := doc.Blocks[:runs[0].start]
	for i, r := range runs {
		end := len(doc.Blocks)
		if i+1 < len(runs) {
			end = runs[i+1].start
		}
		buckets[r.kind] = append(buckets[r.kind], doc.Blocks[r.start:end]...)
	}

	out := make([]block.Block, 0, len(doc.Blocks))
	out = append(out, content...)
	for _, k := range []sectionKind{kindSummary, kindRelated, kindReferences, kindDisclaimer} {
		out = append(out, buckets[k]...)
	}
	if sameOrder(out, doc.Blocks) {
		return doc, false, nil
	}
	res := doc
	res.Blocks = out
	return res, true, nil
}

func (a *Applier) classify(h *block.TextBlock) sectionKind {
	if a.Markers.IsSummary(h) {
		return kindSummary
	}
	text := strings.ToLower(block.HeadingText(h))
	has := func(kws []string) bool {
		for _, kw := range kws {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	}
	switch {
	case has(a.Markers.Related):
		return kindRelated
	case has(a.Markers.References):
		return kindReferences
	case has(a.Markers.Disclaimer):
		return kindDisclaimer
	}
	return kindNone
}
