// Package engine composes scoring, allocation, location, synthesis and
// mutation into the document operations the pipeline runs.
package engine

import (
	"errors"
	"fmt"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/locate"
	"github.com/dgallion1/offersplice/internal/mutate"
	"github.com/dgallion1/offersplice/internal/offer"
	"github.com/dgallion1/offersplice/internal/relevance"
	"github.com/dgallion1/offersplice/internal/synth"
)

// Op names a document operation.
type Op string

const (
	OpInject     Op = "inject"
	OpRestore    Op = "restore"
	OpRevert     Op = "revert"
	OpReposition Op = "reposition"
	OpReorder    Op = "reorder"
)

// ParseOp validates an operation name.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpInject, OpRestore, OpRevert, OpReposition, OpReorder:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	LimitedMax int
	MaxInsert  int // per-document cap on inserted offers, 0 = none
	Markers    *locate.Markers
	Templates  *synth.Templates
	Classifier offer.MainItemClassifier
}

// Engine runs operations against one document at a time. It holds no
// per-document state and may be shared.
type Engine struct {
	registry  *offer.Registry
	scorer    *relevance.Scorer
	allocator *relevance.Allocator
	applier   *mutate.Applier
	markers   locate.Markers
	maxInsert int
}

// New builds an Engine over a loaded catalogue. When opts.Classifier is nil
// and the catalogue lists main-item markers, a MarkerClassifier is used.
func New(cat *offer.Catalogue, opts Options) *Engine {
	markers := locate.DefaultMarkers()
	if opts.Markers != nil {
		markers = *opts.Markers
	}
	sy := synth.New()
	if opts.Templates != nil {
		sy.Templates = *opts.Templates
	}
	classifier := opts.Classifier
	if classifier == nil && len(cat.MainItemMarkers) > 0 {
		classifier = offer.MarkerClassifier{Markers: cat.MainItemMarkers}
	}
	var normalizer offer.CategoryNormalizer
	if cat.Normalizer != nil {
		normalizer = cat.Normalizer
	}
	return &Engine{
		registry: cat.Registry,
		scorer:   &relevance.Scorer{Registry: cat.Registry, Classifier: classifier},
		allocator: &relevance.Allocator{
			Registry:   cat.Registry,
			Fallbacks:  cat.Fallbacks,
			Normalizer: normalizer,
			Classifier: classifier,
			LimitedMax: opts.LimitedMax,
		},
		applier: &mutate.Applier{
			Registry:   cat.Registry,
			Synth:      sy,
			Markers:    markers,
			LimitedMax: opts.LimitedMax,
		},
		markers:   markers,
		maxInsert: opts.MaxInsert,
	}
}

// Registry returns the offer registry the engine was built with.
func (e *Engine) Registry() *offer.Registry { return e.registry }

// Request selects an operation and its arguments.
type Request struct {
	Op        Op
	Preferred []string // inject: only these offer keys may be inserted
	Section   []string // inject: heading keywords of the section to insert into
	Keys      []string // revert: only embeds of these keys; empty = all
}

// Outcome is the result of one operation on one document.
type Outcome struct {
	Doc      block.Document
	Report   mutate.Report
	Changed  bool
	Anchored bool // inject: a heading anchored the insertion
}

// Apply runs req against doc. The input document is never modified.
// ErrNoCandidate and ErrAmbiguousSection come back alongside a valid
// Outcome and are not failures of the document.
func (e *Engine) Apply(doc block.Document, req Request) (Outcome, error) {
	switch req.Op {
	case OpInject:
		return e.InjectInto(doc, req.Preferred, req.Section)
	case OpRestore:
		return e.Restore(doc), nil
	case OpRevert:
		return e.Revert(doc, req.Keys), nil
	case OpReposition:
		return e.Reposition(doc), nil
	case OpReorder:
		return e.Reorder(doc)
	}
	return Outcome{Doc: doc}, fmt.Errorf("unknown operation %q", req.Op)
}

// Suggest ranks the offers relevant to doc. Blocks the engine synthesized
// itself are not scored.
func (e *Engine) Suggest(doc block.Document) []relevance.Suggestion {
	return e.scorer.Suggest(e.scoringView(doc))
}

// Inject repairs existing embeds, then inserts the allocated offers at the
// end of the summary section, or at the document end without one.
func (e *Engine) Inject(doc block.Document, preferred []string) (Outcome, error) {
	return e.InjectInto(doc, preferred, nil)
}

// InjectInto is Inject with the offers placed after the last paragraph of
// the first section whose heading contains one of the section keywords.
// Without a matching section, or when the section lies ahead of the
// summary heading, it falls back to the summary position.
func (e *Engine) InjectInto(doc block.Document, preferred, section []string) (Outcome, error) {
	fixed, rep := e.applier.Enforce(doc)
	out := Outcome{Doc: fixed, Report: rep, Changed: rep.Count() > 0}

	view := e.scoringView(fixed)
	selections, err := e.allocator.Allocate(relevance.Request{
		Doc:         view,
		Suggestions: e.scorer.Suggest(view),
		Existing:    offer.ScanRefs(fixed, e.registry),
		Preferred:   preferred,
	})
	if err != nil {
		return out, err
	}
	if e.maxInsert > 0 && len(selections) > e.maxInsert {
		selections = selections[:e.maxInsert]
	}
	offers := make([]offer.Offer, 0, len(selections))
	for _, s := range selections {
		offers = append(offers, s.Offer)
	}

	pos := locate.Position{Anchor: -1}
	if len(section) > 0 {
		pos = locate.Section(fixed.Blocks, section)
	}
	// Nothing is ever inserted ahead of the summary heading.
	if s := locate.SummaryIndex(fixed.Blocks, e.markers); s >= 0 && pos.Index <= s {
		pos.Anchored = false
	}
	if !pos.Anchored {
		pos = locate.Summary(fixed.Blocks, e.markers)
	}
	ctx := synth.Context{Heading: block.NearestHeading(fixed.Blocks, pos.Index), Title: fixed.Title}
	groups := e.applier.Synth.Build(offers, ctx, fixed.KeySet())

	spliced, srep := e.applier.Splice(fixed, pos.Index, groups)
	out.Doc = spliced
	out.Report.Merge(srep)
	out.Changed = out.Report.Count() > 0
	out.Anchored = pos.Anchored
	if len(srep.Keys(mutate.ActionInserted)) == 0 {
		return out, relevance.ErrNoCandidate
	}
	return out, nil
}

// Restore converts legacy inline offer links into embeds.
func (e *Engine) Restore(doc block.Document) Outcome {
	res, rep := e.applier.Restore(doc)
	return Outcome{Doc: res, Report: rep, Changed: rep.Count() > 0}
}

// Revert converts embeds back into inline links.
func (e *Engine) Revert(doc block.Document, keys []string) Outcome {
	res, rep := e.applier.Revert(doc, keys)
	return Outcome{Doc: res, Report: rep, Changed: rep.Count() > 0}
}

// Reposition moves the last Limited embed into the summary section.
func (e *Engine) Reposition(doc block.Document) Outcome {
	res, rep := e.applier.Reposition(doc)
	return Outcome{Doc: res, Report: rep, Changed: rep.Count() > 0}
}

// Reorder puts the named sections in canonical order. Without a summary
// heading the document comes back unchanged with ErrAmbiguousSection.
func (e *Engine) Reorder(doc block.Document) (Outcome, error) {
	res, changed, err := e.applier.Reorder(doc)
	out := Outcome{Doc: res, Changed: changed}
	if changed {
		out.Report.Changes = append(out.Report.Changes, mutate.Change{Action: mutate.ActionReordered})
	}
	if err != nil && !errors.Is(err, mutate.ErrAmbiguousSection) {
		return Outcome{Doc: doc}, err
	}
	return out, err
}

// scoringView drops the CTA and inline paragraphs the engine wrote, so
// that its own prose never changes what an article is about.
func (e *Engine) scoringView(doc block.Document) block.Document {
	view := doc
	view.Blocks = make([]block.Block, 0, len(doc.Blocks))
	for i, b := range doc.Blocks {
		if i+1 < len(doc.Blocks) {
			if next, ok := doc.Blocks[i+1].(*block.EmbedBlock); ok && synth.IsCTAFor(b, next) {
				continue
			}
		}
		if tb, ok := b.(*block.TextBlock); ok && e.isSynthInline(tb) {
			continue
		}
		view.Blocks = append(view.Blocks, b)
	}
	return view
}

func (e *Engine) isSynthInline(tb *block.TextBlock) bool {
	for _, m := range tb.MarkDefs {
		if !m.IsLink() {
			continue
		}
		if o, ok := e.registry.LookupURL(m.Target); ok && synth.IsInlineFor(tb, o.Key) {
			return true
		}
	}
	return false
}
