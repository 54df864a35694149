package offer

import (
	"fmt"
	"slices"
)

// Registry is the immutable offer lookup table. Declaration order is kept
// and used as the scoring tie-break.
type Registry struct {
	offers []Offer
	byKey  map[string]int
	byURL  map[string]int
}

// NewRegistry validates the offers and builds the lookup indexes. Keys and
// normalized target URLs must be unique.
func NewRegistry(offers []Offer) (*Registry, error) {
	r := &Registry{
		offers: make([]Offer, 0, len(offers)),
		byKey:  make(map[string]int, len(offers)),
		byURL:  make(map[string]int, len(offers)),
	}
	for _, o := range offers {
		if o.Key == "" {
			return nil, fmt.Errorf("offer %q: key is required", o.DisplayName)
		}
		if _, dup := r.byKey[o.Key]; dup {
			return nil, fmt.Errorf("offer %q: duplicate key", o.Key)
		}
		if o.Category != Limited && o.Category != Unlimited {
			return nil, fmt.Errorf("offer %q: invalid category %q", o.Key, o.Category)
		}
		if o.URL == "" {
			return nil, fmt.Errorf("offer %q: url is required", o.Key)
		}
		o.Keywords = slices.Clone(o.Keywords)
		o.URLAliases = slices.Clone(o.URLAliases)
		idx := len(r.offers)
		for _, u := range o.Targets() {
			n := NormalizeURL(u)
			if prev, dup := r.byURL[n]; dup {
				return nil, fmt.Errorf("offer %q: url %s already used by %q", o.Key, u, r.offers[prev].Key)
			}
			r.byURL[n] = idx
		}
		r.byKey[o.Key] = idx
		r.offers = append(r.offers, o)
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on invalid input. For tests and
// static tables.
func MustRegistry(offers ...Offer) *Registry {
	r, err := NewRegistry(offers)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of offers.
func (r *Registry) Len() int { return len(r.offers) }

// All returns every offer in declaration order.
func (r *Registry) All() []Offer { return slices.Clone(r.offers) }

// Active returns the active offers in declaration order.
func (r *Registry) Active() []Offer {
	var out []Offer
	for _, o := range r.offers {
		if o.Active {
			out = append(out, o)
		}
	}
	return out
}

// Get looks an offer up by key.
func (r *Registry) Get(key string) (Offer, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Offer{}, false
	}
	return r.offers[i], true
}

// Order returns the declaration index of key, or -1.
func (r *Registry) Order(key string) int {
	if i, ok := r.byKey[key]; ok {
		return i
	}
	return -1
}

// LookupURL resolves a link target to the offer whose URL or alias matches
// it after normalization.
func (r *Registry) LookupURL(target string) (Offer, bool) {
	i, ok := r.byURL[NormalizeURL(target)]
	if !ok {
		return Offer{}, false
	}
	return r.offers[i], true
}
