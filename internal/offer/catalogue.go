package offer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackRule is one entry of the topical fallback list consulted when
// no offer scores above zero. The rule matches when any needle occurs in
// one of the listed fields.
type FallbackRule struct {
	Name   string   `yaml:"name"`
	Match  []string `yaml:"match"`
	Fields []string `yaml:"fields"` // title, body, slug, category; empty means all
	Offers []string `yaml:"offers"`
}

// Catalogue is everything loaded from the offer catalogue file.
type Catalogue struct {
	Registry        *Registry
	Fallbacks       []FallbackRule
	Normalizer      *AliasNormalizer
	MainItemMarkers []string
}

type catalogueFile struct {
	Offers          []offerEntry        `yaml:"offers"`
	Fallbacks       []FallbackRule      `yaml:"fallbacks"`
	CategoryAliases map[string][]string `yaml:"category_aliases"`
	MainItemMarkers []string            `yaml:"main_item_markers"`
}

type offerEntry struct {
	Key              string   `yaml:"key"`
	Category         string   `yaml:"category"`
	Family           string   `yaml:"family"`
	Name             string   `yaml:"name"`
	Keywords         []string `yaml:"keywords"`
	URL              string   `yaml:"url"`
	URLAliases       []string `yaml:"url_aliases"`
	Provider         string   `yaml:"provider"`
	Active           *bool    `yaml:"active"`
	RequiresMainItem bool     `yaml:"requires_main_item"`
	CTA              string   `yaml:"cta"`
}

func (e offerEntry) toOffer() (Offer, error) {
	cat, err := ParseCategory(e.Category)
	if err != nil {
		return Offer{}, fmt.Errorf("offer %q: %w", e.Key, err)
	}
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return Offer{
		Key:              e.Key,
		Category:         cat,
		Family:           e.Family,
		DisplayName:      e.Name,
		Keywords:         e.Keywords,
		URL:              e.URL,
		URLAliases:       e.URLAliases,
		Provider:         e.Provider,
		Active:           active,
		RequiresMainItem: e.RequiresMainItem,
		CTAOverride:      e.CTA,
	}, nil
}

// ParseCatalogue reads a YAML catalogue.
func ParseCatalogue(r io.Reader) (*Catalogue, error) {
	var f catalogueFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}

	offers := make([]Offer, 0, len(f.Offers))
	for _, e := range f.Offers {
		o, err := e.toOffer()
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	reg, err := NewRegistry(offers)
	if err != nil {
		return nil, err
	}
	for _, rule := range f.Fallbacks {
		for _, k := range rule.Offers {
			if _, ok := reg.Get(k); !ok {
				return nil, fmt.Errorf("fallback %q: unknown offer %q", rule.Name, k)
			}
		}
		for _, field := range rule.Fields {
			switch field {
			case "title", "body", "slug", "category":
			default:
				return nil, fmt.Errorf("fallback %q: unknown field %q", rule.Name, field)
			}
		}
	}

	return &Catalogue{
		Registry:        reg,
		Fallbacks:       f.Fallbacks,
		Normalizer:      NewAliasNormalizer(f.CategoryAliases),
		MainItemMarkers: f.MainItemMarkers,
	}, nil
}

// LoadCatalogue reads a catalogue file. ".csv" files carry offers only.
func LoadCatalogue(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		offers, err := ParseCSV(f)
		if err != nil {
			return nil, err
		}
		reg, err := NewRegistry(offers)
		if err != nil {
			return nil, err
		}
		return &Catalogue{Registry: reg, Normalizer: NewAliasNormalizer(nil)}, nil
	}
	return ParseCatalogue(f)
}
