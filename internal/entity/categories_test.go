package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCategories(t *testing.T) {
	tests := []struct {
		name     string
		services []string
		expected []string
	}{
		{
			name:     "roofing keywords",
			services: []string{"Roof replacement", "Gutter installation"},
			expected: []string{"roofing"},
		},
		{
			name:     "multiple categories",
			services: []string{"Drain cleaning", "Water heater repair", "Panel upgrades"},
			expected: []string{"cleaning", "electrical", "plumbing"},
		},
		{
			name:     "case insensitive",
			services: []string{"HVAC MAINTENANCE"},
			expected: []string{"hvac"},
		},
		{
			name:     "no match",
			services: []string{"Consulting"},
			expected: nil,
		},
		{
			name:     "empty input",
			services: nil,
			expected: nil,
		},
		{
			name:     "duplicate services collapse",
			services: []string{"Fence repair", "Fencing", "fence staining"},
			expected: []string{"fencing", "painting"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveCategories(tt.services))
		})
	}
}

func TestServicesFromMerged(t *testing.T) {
	merged := map[string]any{
		"services": map[string]any{
			"offered":     []any{"Roof replacement", ""},
			"specialties": []any{"Slate roofs"},
		},
	}
	assert.Equal(t, []string{"Roof replacement", "Slate roofs"}, ServicesFromMerged(merged))

	assert.Nil(t, ServicesFromMerged(map[string]any{}))
}
