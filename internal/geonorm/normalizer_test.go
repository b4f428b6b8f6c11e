package geonorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNorthernVirginia(t *testing.T) {
	res := Normalize([]string{"Northern Virginia"})

	assert.Contains(t, res.Normalized.Counties, "Fairfax")
	assert.Contains(t, res.Normalized.Counties, "Loudoun")
	assert.Contains(t, res.Normalized.Counties, "Prince William")
	assert.Contains(t, res.Normalized.Counties, "Arlington")
	assert.Contains(t, res.Normalized.IndependentCities, "Alexandria")
	assert.Contains(t, res.Normalized.States, "VA")
	assert.Empty(t, res.RawTags)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		labels     []string
		counties   []string
		states     []string
		cities     []string
		rawTags    []string
	}{
		{
			name:     "regional alias NoVA",
			labels:   []string{"NoVA"},
			counties: []string{"Arlington", "Fairfax", "Loudoun", "Prince William"},
			states:   []string{"VA"},
			cities:   []string{"Alexandria"},
		},
		{
			name:     "county suffix known county",
			labels:   []string{"Fairfax County"},
			counties: []string{"Fairfax"},
			states:   []string{"VA"},
		},
		{
			name:     "county suffix unknown county still accepted",
			labels:   []string{"Washtenaw County"},
			counties: []string{"Washtenaw"},
		},
		{
			name:   "independent city",
			labels: []string{"Falls Church"},
			states: []string{"VA"},
			cities: []string{"Falls Church"},
		},
		{
			name:     "known city maps to county",
			labels:   []string{"Ashburn"},
			counties: []string{"Loudoun"},
			states:   []string{"VA"},
		},
		{
			name:   "state abbreviation",
			labels: []string{"MD"},
			states: []string{"MD"},
		},
		{
			name:   "full state name",
			labels: []string{"Maryland"},
			states: []string{"MD"},
		},
		{
			name:    "unmapped label preserved in raw tags",
			labels:  []string{"the greater metropolitan area"},
			rawTags: []string{"the greater metropolitan area"},
		},
		{
			name:     "mixed mapped and unmapped",
			labels:   []string{"Fairfax County", "tri-state area"},
			counties: []string{"Fairfax"},
			states:   []string{"VA"},
			rawTags:  []string{"tri-state area"},
		},
		{
			name:     "case and punctuation insensitive",
			labels:   []string{"  northern virginia.  "},
			counties: []string{"Arlington", "Fairfax", "Loudoun", "Prince William"},
			states:   []string{"VA"},
			cities:   []string{"Alexandria"},
		},
		{
			name:     "duplicates collapse",
			labels:   []string{"Fairfax County", "McLean", "Vienna"},
			counties: []string{"Fairfax"},
			states:   []string{"VA"},
		},
		{
			name:   "empty labels skipped",
			labels: []string{"", "   "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.labels)
			assert.Equal(t, tt.counties, res.Normalized.Counties)
			assert.Equal(t, tt.states, res.Normalized.States)
			assert.Equal(t, tt.cities, res.Normalized.IndependentCities)
			assert.Equal(t, tt.rawTags, res.RawTags)
		})
	}
}

func TestNormalizeNeverFails(t *testing.T) {
	// Anything at all can be passed; output is deterministic and total.
	res := Normalize([]string{"zzz unknown place", "12345", "Nowhere Special County"})
	assert.Contains(t, res.Normalized.Counties, "Nowhere Special")
	assert.Len(t, res.RawTags, 2)
}
