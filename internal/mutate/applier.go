// Package mutate applies offer transforms to a block sequence. Every
// function returns a new Document; input blocks are never modified in
// place, and blocks that change are cloned first.
package mutate

import (
	"errors"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/locate"
	"github.com/dgallion1/offersplice/internal/offer"
	"github.com/dgallion1/offersplice/internal/relevance"
	"github.com/dgallion1/offersplice/internal/synth"
)

// ErrAmbiguousSection means an operation needed a structural anchor, the
// summary heading, that the document does not have.
var ErrAmbiguousSection = errors.New("summary section missing")

// Action names one kind of change in a Report.
type Action string

const (
	ActionInserted  Action = "inserted"
	ActionRestored  Action = "restored"
	ActionReverted  Action = "reverted"
	ActionMoved     Action = "moved"
	ActionRemoved   Action = "removed"
	ActionStripped  Action = "stripped"
	ActionReordered Action = "reordered"
	ActionSkipped   Action = "skipped" // considered but left alone
)

// Change records one change, or one deliberate non-change.
type Change struct {
	Action   Action `json:"action"`
	OfferKey string `json:"offer_key,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Report lists what a transform did.
type Report struct {
	Changes []Change `json:"changes"`
}

func (r *Report) add(a Action, key, reason string) {
	r.Changes = append(r.Changes, Change{Action: a, OfferKey: key, Reason: reason})
}

// Merge appends the changes of other.
func (r *Report) Merge(other Report) {
	r.Changes = append(r.Changes, other.Changes...)
}

// Count is the number of real changes, skips excluded.
func (r Report) Count() int {
	n := 0
	for _, c := range r.Changes {
		if c.Action != ActionSkipped {
			n++
		}
	}
	return n
}

// Keys returns the offer keys that had the given action.
func (r Report) Keys(a Action) []string {
	var out []string
	for _, c := range r.Changes {
		if c.Action == a && c.OfferKey != "" {
			out = append(out, c.OfferKey)
		}
	}
	return out
}

// Applier holds the collaborators shared by the transforms.
type Applier struct {
	Registry   *offer.Registry
	Synth      *synth.Synthesizer
	Markers    locate.Markers
	LimitedMax int // 0 means relevance.DefaultLimitedMax
}

func (a *Applier) limitedMax() int {
	if a.LimitedMax <= 0 {
		return relevance.DefaultLimitedMax
	}
	return a.LimitedMax
}

// Splice inserts the groups at idx. A group is dropped when the document
// already references any of its offer keys, so re-running a pipeline on a
// mutated document inserts nothing twice.
func (a *Applier) Splice(doc block.Document, idx int, groups []synth.Group) (block.Document, Report) {
	var rep Report
	refs := offer.ScanRefs(doc, a.Registry)
	seen := make(map[string]bool)

	var insert []block.Block
	for _, g := range groups {
		dup := false
		for _, k := range g.Keys {
			if refs.Has(k) || seen[k] {
				dup = true
				break
			}
		}
		if dup {
			for _, k := range g.Keys {
				rep.add(ActionSkipped, k, "already referenced")
			}
			continue
		}
		for _, k := range g.Keys {
			seen[k] = true
			rep.add(ActionInserted, k, "")
		}
		insert = append(insert, g.Blocks...)
	}
	if len(insert) == 0 {
		return doc, rep
	}

	idx = min(max(idx, 0), len(doc.Blocks))
	out := doc
	out.Blocks = make([]block.Block, 0, len(doc.Blocks)+len(insert))
	out.Blocks = append(out.Blocks, doc.Blocks[:idx]...)
	out.Blocks = append(out.Blocks, insert...)
	out.Blocks = append(out.Blocks, doc.Blocks[idx:]...)
	return out, rep
}

func (a *Applier) context(doc block.Document, blocks []block.Block, idx int) synth.Context {
	return synth.Context{Heading: block.NearestHeading(blocks, idx), Title: doc.Title}
}

// sameOrder reports whether two sequences hold the same block keys in the
// same order.
func sameOrder(x, y []block.Block) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i].Key() != y[i].Key() {
			return false
		}
	}
	return true
}
