package mutate

import (
	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/locate"
	"github.com/dgallion1/offersplice/internal/offer"
	"github.com/dgallion1/offersplice/internal/synth"
)

// Reposition moves the last embed whose primary offer is Limited, together
// with its synthesized CTA block, to the end of the summary section. An
// embed already inside the summary section stays where it is. Without a
// summary heading the embed goes to the document end.
func (a *Applier) Reposition(doc block.Document) (block.Document, Report) {
	var rep Report
	last := -1
	for i, b := range doc.Blocks {
		e, ok := b.(*block.EmbedBlock)
		if !ok || e.OfferKey == "" {
			continue
		}
		if o, ok := a.Registry.Get(e.OfferKey); ok && o.Category == offer.Limited {
			last = i
		}
	}
	if last < 0 {
		return doc, rep
	}
	e := doc.Blocks[last].(*block.EmbedBlock)

	start := last
	if last > 0 && synth.IsCTAFor(doc.Blocks[last-1], e) {
		start = last - 1
	}
	moving := doc.Blocks[start : last+1]

	rest := make([]block.Block, 0, len(doc.Blocks))
	rest = append(rest, doc.Blocks[:start]...)
	rest = append(rest, doc.Blocks[last+1:]...)

	pos := locate.Summary(rest, a.Markers)
	if pos.Anchored && start > pos.Anchor && start <= pos.Index {
		rep.add(ActionSkipped, e.OfferKey, "already in summary section")
		return doc, rep
	}

	out := make([]block.Block, 0, len(doc.Blocks))
	out = append(out, rest[:pos.Index]...)
	out = append(out, moving...)
	out = append(out, rest[pos.Index:]...)
	if sameOrder(out, doc.Blocks) {
		rep.add(ActionSkipped, e.OfferKey, "already in place")
		return doc, rep
	}
	rep.add(ActionMoved, e.OfferKey, "")
	res := doc
	res.Blocks = out
	return res, rep
}
