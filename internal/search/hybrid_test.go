package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/provider-directory/internal/entity"
)

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"emergency", "roof", "repair"}, queryTerms("Emergency roof repair, roof!"))
	assert.Empty(t, queryTerms("  ,, "))
}

func TestFullTextScoreCoversNameDescriptionServices(t *testing.T) {
	e := &entity.CanonicalEntity{
		BusinessName: "Apex Exteriors",
		Description:  "Residential roof replacement across Northern Virginia.",
		MergedData: map[string]any{
			"services": map[string]any{
				"offered": []any{"Gutter installation", "Siding"},
			},
		},
	}

	terms := queryTerms("roof gutter chimney")
	assert.InDelta(t, 2.0/3.0, fullTextScore(terms, e), 1e-9)
	assert.Zero(t, fullTextScore(nil, e))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestHaversineKm(t *testing.T) {
	// Washington DC to Baltimore.
	d := haversineKm(38.9072, -77.0369, 39.2904, -76.6122)
	assert.InDelta(t, 56, d, 2)

	assert.Zero(t, haversineKm(38.9, -77.0, 38.9, -77.0))
}
