package resolve

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// TokenSortRatio computes a fuzzy similarity between two strings on a 0-100
// scale. Both sides are normalized, tokenized, sorted, and rejoined before
// the edit-distance comparison, so word order does not matter:
// "Roofing ABC" vs "ABC Roofing" scores 100.
func TokenSortRatio(a, b string) float64 {
	sa := tokenSort(NormalizeName(a))
	sb := tokenSort(NormalizeName(b))
	if sa == "" || sb == "" {
		return 0
	}
	return levenshtein.Similarity(sa, sb, nil) * 100
}

// Ratio computes a plain fuzzy similarity between two already-normalized
// strings on a 0-100 scale.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

func tokenSort(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
