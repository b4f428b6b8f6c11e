package search

import (
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/provider-directory/internal/entity"
)

// queryTerms lowercases and splits the query into distinct word tokens.
func queryTerms(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// fullTextScore is the fraction of query terms found in the entity's
// name, description, or offered services.
func fullTextScore(terms []string, e *entity.CanonicalEntity) float64 {
	if len(terms) == 0 {
		return 0
	}

	var hay strings.Builder
	hay.WriteString(e.BusinessName)
	hay.WriteByte(' ')
	hay.WriteString(e.Description)
	for _, svc := range offeredServices(e.MergedData) {
		hay.WriteByte(' ')
		hay.WriteString(svc)
	}
	haystack := strings.ToLower(hay.String())

	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func offeredServices(merged map[string]any) []string {
	svc, ok := merged["services"].(map[string]any)
	if !ok {
		return nil
	}
	list, ok := svc["offered"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// cosineSimilarity returns 0 for mismatched dimensions or zero vectors
// rather than propagating NaN into scores.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

const earthRadiusKm = 6371

// haversineKm is the great-circle distance between two lat/lon points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Pow(math.Sin(dLat/2), 2) + math.Cos(rLat1)*math.Cos(rLat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
