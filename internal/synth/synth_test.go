package synth

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/offer"
)

var (
	agent = offer.Offer{Key: "agent", Category: offer.Limited, DisplayName: "Agent", URL: "https://agent.example/", Provider: "a8"}
	shopA = offer.Offer{Key: "shop-a", Category: offer.Unlimited, Family: "shop", DisplayName: "Shop A", URL: "https://a.example/"}
	shopB = offer.Offer{Key: "shop-b", Category: offer.Unlimited, Family: "shop", DisplayName: "Shop B", URL: "https://b.example/"}
	books = offer.Offer{Key: "books", Category: offer.Unlimited, DisplayName: "Books", URL: "https://books.example/"}
)

func TestTemplates_LookupOrder(t *testing.T) {
	tmpl := DefaultTemplates()
	tmpl.ByKey["agent"] = func(o offer.Offer, c Context) string { return "key:" + c.Heading }
	ctx := Context{Heading: "夜勤", Title: "T"}

	if got := tmpl.CTA(agent, ctx); got != "key:夜勤" {
		t.Errorf("expected key template, got %q", got)
	}

	o := agent
	o.Key = "other"
	o.CTAOverride = "{name} / {heading} / {title}"
	if got := tmpl.CTA(o, ctx); got != "Agent / 夜勤 / T" {
		t.Errorf("expected override, got %q", got)
	}

	o.CTAOverride = ""
	if got := tmpl.CTA(o, ctx); !strings.Contains(got, "「夜勤」") {
		t.Errorf("expected limited category template, got %q", got)
	}

	tmpl.ByCategory = nil
	if got := tmpl.CTA(o, ctx); got != "Agentの詳細はこちら。" {
		t.Errorf("expected generic fallback, got %q", got)
	}

	empty := Templates{}
	if got := empty.CTA(o, ctx); got != "Agent" {
		t.Errorf("expected display name as last resort, got %q", got)
	}
}

func TestBuild_MergesSameFamilyUnlimited(t *testing.T) {
	s := New()
	taken := map[string]bool{}
	groups := s.Build([]offer.Offer{shopA, agent, shopB, books}, Context{}, taken)

	var got [][]string
	for _, g := range groups {
		got = append(got, g.Keys)
	}
	want := [][]string{{"shop-a", "shop-b"}, {"agent"}, {"books"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}

	merged := groups[0].Blocks[1].(*block.EmbedBlock)
	if merged.OfferKey != "shop-a" || !cmp.Equal(merged.Bundled, []string{"shop-b"}) {
		t.Errorf("unexpected merged embed: %+v", merged)
	}
	info := block.ParseMarkup(merged.Markup)
	if diff := cmp.Diff([]string{"https://a.example/", "https://b.example/"}, info.Targets); diff != "" {
		t.Errorf("merged card targets mismatch (-want +got):\n%s", diff)
	}
	if !IsCTAFor(groups[0].Blocks[0], merged) {
		t.Error("expected the merged CTA block to be recognised")
	}

	if e := groups[1].Blocks[1].(*block.EmbedBlock); e.Provider != "a8" {
		t.Errorf("expected provider a8, got %q", e.Provider)
	}
	if e := groups[2].Blocks[1].(*block.EmbedBlock); e.Provider != DefaultProvider {
		t.Errorf("expected default provider, got %q", e.Provider)
	}
	if len(taken) != 6 {
		t.Errorf("expected 6 reserved keys, got %d", len(taken))
	}
}

func TestBuild_DeterministicAndDecollided(t *testing.T) {
	s := New()
	first := s.Build([]offer.Offer{agent}, Context{}, map[string]bool{})
	second := s.Build([]offer.Offer{agent}, Context{}, map[string]bool{})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("expected identical output (-first +second):\n%s", diff)
	}

	taken := map[string]bool{first[0].Blocks[1].Key(): true}
	third := s.Build([]offer.Offer{agent}, Context{}, taken)
	if third[0].Blocks[1].Key() == first[0].Blocks[1].Key() {
		t.Error("expected embed key to avoid a taken key")
	}
}

func TestIsCTAFor_DecollidedKey(t *testing.T) {
	s := New()
	taken := map[string]bool{block.NewKey("cta", "agent"): true}
	g := s.Build([]offer.Offer{agent}, Context{}, taken)[0]

	cta, e := g.Blocks[0], g.Blocks[1].(*block.EmbedBlock)
	if cta.Key() == block.NewKey("cta", "agent") {
		t.Fatal("expected the CTA key to avoid a taken key")
	}
	if !IsCTAFor(cta, e) {
		t.Error("expected a decollided CTA to be recognised")
	}

	other := s.Build([]offer.Offer{books}, Context{}, map[string]bool{})[0]
	if IsCTAFor(other.Blocks[0], e) {
		t.Error("expected another offer's CTA to be rejected")
	}
	plain := &block.TextBlock{ID: "p", Style: block.Paragraph(), Spans: []block.Span{{Key: "s", Text: "plain"}}}
	if IsCTAFor(plain, e) {
		t.Error("expected a plain paragraph to be rejected")
	}
}

func TestInline(t *testing.T) {
	s := New()
	tb := s.Inline(books, Context{}, map[string]bool{})
	if !IsInlineFor(tb, "books") {
		t.Error("expected IsInlineFor to recognise the inline block")
	}
	if len(tb.MarkDefs) != 1 || tb.MarkDefs[0].Target != books.URL || !tb.MarkDefs[0].IsLink() {
		t.Fatalf("unexpected mark defs: %+v", tb.MarkDefs)
	}
	if len(tb.Spans) != 1 || tb.Spans[0].Marks[0] != tb.MarkDefs[0].Key {
		t.Errorf("expected the whole text to carry the link mark: %+v", tb.Spans)
	}
}

func TestRenderMarkup(t *testing.T) {
	out := RenderMarkup([]offer.Offer{{Key: "x", DisplayName: `A&B <co>`, URL: "https://x.example/?a=1&b=2"}})
	if !strings.Contains(out, `data-offer-key="x"`) || !strings.Contains(out, "A&amp;B &lt;co&gt;") {
		t.Errorf("unexpected markup: %s", out)
	}
	info := block.ParseMarkup(out)
	if len(info.Targets) != 1 || info.Targets[0] != "https://x.example/?a=1&b=2" {
		t.Errorf("expected href to survive escaping, got %v", info.Targets)
	}
	if RenderMarkup(nil) != "" {
		t.Error("expected empty markup for no offers")
	}
}
