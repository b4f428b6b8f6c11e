// Package geonorm maps freeform service-area labels to structured
// county/state/independent-city sets. Purely deterministic: table lookups
// and a county-suffix heuristic, no external calls, and it never fails;
// labels it cannot map are preserved in RawTags.
package geonorm

import (
	"regexp"
	"sort"
	"strings"
)

// Normalized is the structured form of a set of area labels.
type Normalized struct {
	Counties          []string `json:"counties"`
	States            []string `json:"states"`
	IndependentCities []string `json:"independent_cities"`
}

// Result pairs the normalized areas with the labels that did not map.
type Result struct {
	Normalized Normalized `json:"normalized"`
	RawTags    []string   `json:"raw_tags"`
}

var countySuffixRe = regexp.MustCompile(`(?i)\s+county$`)
var punctRe = regexp.MustCompile(`[.,;:!?]+`)

// Normalize maps raw area labels to structured geography. Order of passes
// per label: regional alias, county suffix, independent city, known city,
// state name. Unmapped labels land in RawTags, never dropped.
func Normalize(labels []string) Result {
	acc := &accumulator{
		counties: map[string]bool{},
		states:   map[string]bool{},
		cities:   map[string]bool{},
	}
	var raw []string

	for _, label := range labels {
		key := normalizeKey(label)
		if key == "" {
			continue
		}
		if !classify(key, acc) {
			raw = append(raw, strings.TrimSpace(label))
		}
	}

	return Result{
		Normalized: Normalized{
			Counties:          acc.sorted(acc.counties),
			States:            acc.sorted(acc.states),
			IndependentCities: acc.sorted(acc.cities),
		},
		RawTags: raw,
	}
}

type accumulator struct {
	counties map[string]bool
	states   map[string]bool
	cities   map[string]bool
}

func (a *accumulator) addRegion(n Normalized) {
	for _, c := range n.Counties {
		a.counties[c] = true
	}
	for _, s := range n.States {
		a.states[s] = true
	}
	for _, c := range n.IndependentCities {
		a.cities[c] = true
	}
}

func (a *accumulator) sorted(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// classify attempts all mapping passes for one normalized label. Returns
// false if nothing matched.
func classify(key string, acc *accumulator) bool {
	if region, ok := regionAliases[key]; ok {
		acc.addRegion(region)
		return true
	}

	// "X County" suffix: strip and look up the county table; accept the
	// name even when unknown as long as it carried the explicit suffix.
	if countySuffixRe.MatchString(key) {
		name := strings.TrimSpace(countySuffixRe.ReplaceAllString(key, ""))
		if name == "" {
			return false
		}
		acc.counties[titleCase(name)] = true
		if st, ok := countyState[name]; ok {
			acc.states[st] = true
		}
		return true
	}

	if city, ok := independentCities[key]; ok {
		acc.cities[city.Name] = true
		acc.states[city.State] = true
		return true
	}

	if cc, ok := cityCounty[key]; ok {
		acc.counties[cc.County] = true
		acc.states[cc.State] = true
		return true
	}

	if st, ok := stateNames[key]; ok {
		acc.states[st] = true
		return true
	}

	return false
}

// normalizeKey lowercases, strips punctuation, and collapses whitespace.
func normalizeKey(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = punctRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return s
}

// titleCase capitalizes each word of a county name.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
