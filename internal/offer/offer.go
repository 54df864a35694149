package offer

import (
	"fmt"
	"strings"
)

// Category decides whether an offer counts against the per-document quota.
type Category string

const (
	Limited   Category = "limited"
	Unlimited Category = "unlimited"
)

// ParseCategory accepts the catalogue spelling of a category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "limited":
		return Limited, nil
	case "unlimited":
		return Unlimited, nil
	}
	return "", fmt.Errorf("unknown offer category %q", s)
}

// Offer is one catalogued monetization opportunity.
type Offer struct {
	Key         string
	Category    Category
	Family      string // Unlimited sub-family; same-family offers share one card
	DisplayName string
	Keywords    []string
	URL         string
	URLAliases  []string // historical URLs that resolve to this offer
	Provider    string   // embed provider name
	Active      bool

	// RequiresMainItem gates suggestion on the main-item classifier.
	RequiresMainItem bool

	// CTAOverride is a template string ({name}, {heading}, {title}) used
	// instead of the category template when no key-specific template exists.
	CTAOverride string
}

// IsUnlimited reports whether the offer is exempt from the quota.
func (o Offer) IsUnlimited() bool { return o.Category == Unlimited }

// Targets returns the canonical URL followed by any aliases.
func (o Offer) Targets() []string {
	return append([]string{o.URL}, o.URLAliases...)
}
