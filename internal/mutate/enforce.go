package mutate

import (
	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/offer"
	"github.com/dgallion1/offersplice/internal/synth"
)

// Enforce repairs embeds that break the output invariants. Walking the
// embeds in order: a key already embedded earlier is dropped, a key the
// registry does not know is dropped, and a key whose offer is inactive or
// would exceed the Limited quota is reverted to an inline link. An embed
// that loses some of its keys is rebuilt from the rest. Embeds without
// offer keys are left alone.
func (a *Applier) Enforce(doc block.Document) (block.Document, Report) {
	var rep Report
	seen := make(map[string]bool)
	limited := 0
	taken := doc.KeySet()

	out := make([]block.Block, 0, len(doc.Blocks))
	changed := false
	for i, b := range doc.Blocks {
		e, ok := b.(*block.EmbedBlock)
		if !ok || len(e.OfferKeys()) == 0 {
			out = append(out, b)
			continue
		}

		var kept, demoted []offer.Offer
		for _, k := range e.OfferKeys() {
			o, known := a.Registry.Get(k)
			switch {
			case seen[k]:
				rep.add(ActionRemoved, k, "duplicate embed")
			case !known:
				rep.add(ActionRemoved, k, "unknown offer")
			case !o.Active:
				demoted = append(demoted, o)
				rep.add(ActionReverted, k, "offer inactive")
			case o.Category == offer.Limited && limited >= a.limitedMax():
				demoted = append(demoted, o)
				rep.add(ActionReverted, k, "limited quota exceeded")
			default:
				kept = append(kept, o)
				if o.Category == offer.Limited {
					limited++
				}
			}
			seen[k] = true
		}
		if len(kept) == len(e.OfferKeys()) {
			out = append(out, b)
			continue
		}

		changed = true
		delete(taken, e.ID)
		if n := len(out); n > 0 && synth.IsCTAFor(out[n-1], e) {
			delete(taken, out[n-1].Key())
			out = out[:n-1]
		}
		ctx := a.context(doc, doc.Blocks, i)
		for _, g := range a.Synth.Build(kept, ctx, taken) {
			out = append(out, g.Blocks...)
		}
		for _, o := range demoted {
			out = append(out, a.Synth.Inline(o, ctx, taken))
		}
	}
	if !changed {
		return doc, rep
	}
	res := doc
	res.Blocks = out
	return res, rep
}
