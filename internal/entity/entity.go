// Package entity defines the canonical provider record: the single
// deduplicated entity for one real-world service business, with its
// multi-source merged document and provenance.
package entity

import (
	"time"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/provider-directory/internal/geonorm"
	"github.com/sells-group/provider-directory/internal/model"
)

// CanonicalEntity is the golden record for one service provider. Created on
// the first create decision, updated on every subsequent link, never
// hard-deleted.
type CanonicalEntity struct {
	ID            int64  `json:"id" db:"id"`
	BusinessName  string `json:"business_name" db:"business_name"`
	Description   string `json:"description,omitempty" db:"description"`
	Phone         string `json:"phone,omitempty" db:"phone"`
	Website       string `json:"website,omitempty" db:"website"`
	LicenseNumber string `json:"license_number,omitempty" db:"license_number"`
	Address       string `json:"address,omitempty" db:"address"`

	// Coordinates is nil until the address geocodes successfully; entities
	// persist without it and are backfillable later.
	Coordinates *geom.Point `json:"coordinates,omitempty"`

	ServiceArea geonorm.Normalized `json:"service_area"`
	RawAreaTags []string           `json:"raw_area_tags,omitempty"`

	Rating       float64 `json:"rating,omitempty" db:"rating"`
	TotalReviews int     `json:"total_reviews,omitempty" db:"total_reviews"`

	// MergedData is the full multi-source document maintained by the merge
	// engine.
	MergedData map[string]any `json:"merged_data,omitempty"`

	// Embedding is nil until the description has been embedded. A nil
	// embedding excludes the entity from semantic search; it is never
	// substituted with zeros.
	Embedding []float32 `json:"embedding,omitempty"`

	Provenance []model.Provenance `json:"provenance,omitempty"`
	Categories []string           `json:"categories,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Lat returns the latitude, or 0 when ungeocoded.
func (e *CanonicalEntity) Lat() float64 {
	if e.Coordinates == nil {
		return 0
	}
	return e.Coordinates.Y()
}

// Lon returns the longitude, or 0 when ungeocoded.
func (e *CanonicalEntity) Lon() float64 {
	if e.Coordinates == nil {
		return 0
	}
	return e.Coordinates.X()
}

// SetCoordinates stores a lon/lat point on the entity.
func (e *CanonicalEntity) SetCoordinates(lon, lat float64) {
	e.Coordinates = geom.NewPointFlat(geom.XY, []float64{lon, lat})
}

// MergeServiceArea unions newly normalized geography into the entity's
// structured service area, keeping raw tags for unmapped labels.
func (e *CanonicalEntity) MergeServiceArea(res geonorm.Result) {
	e.ServiceArea.Counties = unionStrings(e.ServiceArea.Counties, res.Normalized.Counties)
	e.ServiceArea.States = unionStrings(e.ServiceArea.States, res.Normalized.States)
	e.ServiceArea.IndependentCities = unionStrings(e.ServiceArea.IndependentCities, res.Normalized.IndependentCities)
	e.RawAreaTags = unionStrings(e.RawAreaTags, res.RawTags)
}

func unionStrings(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	out := existing
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
