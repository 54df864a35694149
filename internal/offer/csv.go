package offer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseCSV reads offers from a CSV export. The first row names the
// columns; key, category, name and url are required. Keywords and
// url_aliases are "|"-separated.
func ParseCSV(r io.Reader) ([]Offer, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"key", "category", "name", "url"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("parse csv: missing column %q", required)
		}
	}

	var offers []Offer
	for line, row := range records[1:] {
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		cat, err := ParseCategory(get("category"))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", line+2, err) // 1-indexed, skip header
		}
		active := true
		if v := get("active"); v != "" {
			if active, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("csv row %d: active: %w", line+2, err)
			}
		}
		gated := false
		if v := get("requires_main_item"); v != "" {
			if gated, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("csv row %d: requires_main_item: %w", line+2, err)
			}
		}
		offers = append(offers, Offer{
			Key:              get("key"),
			Category:         cat,
			Family:           get("family"),
			DisplayName:      get("name"),
			Keywords:         splitList(get("keywords")),
			URL:              get("url"),
			URLAliases:       splitList(get("url_aliases")),
			Provider:         get("provider"),
			Active:           active,
			RequiresMainItem: gated,
			CTAOverride:      get("cta"),
		})
	}
	return offers, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
