package entity

import (
	"sort"
	"strings"
)

// categoryKeywords maps a provider category slug to the service keywords
// that imply it. Matching is substring, case-insensitive, against the
// merged "services offered" list.
var categoryKeywords = map[string][]string{
	"roofing":       {"roof", "shingle", "gutter"},
	"plumbing":      {"plumb", "drain", "water heater", "sewer", "pipe"},
	"electrical":    {"electric", "wiring", "panel", "lighting install"},
	"hvac":          {"hvac", "heating", "cooling", "air conditioning", "furnace", "heat pump"},
	"landscaping":   {"landscap", "lawn", "mowing", "tree trimming", "sod", "mulch"},
	"painting":      {"paint", "staining", "drywall finish"},
	"flooring":      {"floor", "carpet", "tile install", "hardwood"},
	"remodeling":    {"remodel", "renovation", "kitchen", "bathroom", "basement finish", "addition"},
	"cleaning":      {"cleaning", "maid", "janitorial", "power wash", "pressure wash"},
	"pest-control":  {"pest", "exterminat", "termite", "rodent"},
	"handyman":      {"handyman", "odd jobs", "general repair"},
	"masonry":       {"masonry", "brick", "stone work", "concrete", "paver"},
	"windows-doors": {"window", "door install", "siding"},
	"fencing":       {"fence", "fencing", "gate install"},
	"garage-doors":  {"garage door"},
}

// DeriveCategories keyword-matches the offered/specialty services list to
// provider categories. Output is sorted and de-duplicated.
func DeriveCategories(services []string) []string {
	found := map[string]bool{}
	for _, svc := range services {
		s := strings.ToLower(svc)
		for cat, keywords := range categoryKeywords {
			if found[cat] {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(s, kw) {
					found[cat] = true
					break
				}
			}
		}
	}
	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for cat := range found {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// ServicesFromMerged pulls the offered and specialty service strings out of
// a merged multi-source document.
func ServicesFromMerged(merged map[string]any) []string {
	svc := asMap(merged["services"])
	if svc == nil {
		return nil
	}
	var out []string
	for _, v := range asList(svc["offered"]) {
		if s := asString(v); s != "" {
			out = append(out, s)
		}
	}
	for _, v := range asList(svc["specialties"]) {
		if s := asString(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
