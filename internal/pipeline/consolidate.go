package pipeline

import (
	"strings"
	"time"

	"github.com/sells-group/provider-directory/internal/entity"
	"github.com/sells-group/provider-directory/internal/geonorm"
	"github.com/sells-group/provider-directory/internal/model"
)

// consolidate projects a draft document into canonical-entity shape: the
// scalar identity fields, the normalized geography, the rating aggregate,
// and one provenance entry for the contributing source.
func consolidate(rec *model.ScrapedRecord, draft *model.DraftDocument, geo geonorm.Result) *entity.CanonicalEntity {
	bi := draft.BusinessInfo

	e := &entity.CanonicalEntity{
		BusinessName:  strings.TrimSpace(bi.Name),
		Description:   strings.TrimSpace(bi.Description),
		Phone:         strings.TrimSpace(bi.Phone),
		Website:       strings.TrimSpace(bi.Website),
		LicenseNumber: strings.TrimSpace(bi.License.Number),
		Address:       strings.TrimSpace(bi.Address),
		Rating:        draft.Reviews.Rating,
		TotalReviews:  draft.Reviews.TotalReviews,
	}
	e.MergeServiceArea(geo)
	e.Provenance = []model.Provenance{provenanceEntry(rec)}
	return e
}

// provenanceEntry builds the provenance record for one scraped page.
func provenanceEntry(rec *model.ScrapedRecord) model.Provenance {
	return model.Provenance{
		SourceName: rec.SourceName,
		URL:        rec.SourceURL,
		Timestamp:  time.Now().UTC(),
	}
}

// applyDraftFields folds the consolidated draft fields into an existing
// entity. Scalars follow the merge-engine policy (richer text wins, contact
// identifiers stay put unless empty); the rating becomes a review-count
// weighted rolling average across sources.
func applyDraftFields(e *entity.CanonicalEntity, fresh *entity.CanonicalEntity, geo geonorm.Result) {
	if len(fresh.BusinessName) > len(e.BusinessName) {
		e.BusinessName = fresh.BusinessName
	}
	if len(fresh.Description) > len(e.Description) {
		e.Description = fresh.Description
	}
	if len(fresh.Address) > len(e.Address) {
		e.Address = fresh.Address
	}
	if e.Phone == "" {
		e.Phone = fresh.Phone
	}
	if e.Website == "" {
		e.Website = fresh.Website
	}
	if e.LicenseNumber == "" {
		e.LicenseNumber = fresh.LicenseNumber
	}

	// A source already recorded in provenance contributed its reviews to the
	// aggregates once; re-running the same record must not re-count them.
	if !sourceAlreadyMerged(e.Provenance, fresh.Provenance) {
		e.Rating = rollingRating(e.Rating, e.TotalReviews, fresh.Rating, fresh.TotalReviews)
		if fresh.TotalReviews > e.TotalReviews {
			e.TotalReviews = fresh.TotalReviews
		}
	}

	e.MergeServiceArea(geo)
	e.Provenance = appendProvenance(e.Provenance, fresh.Provenance)
}

// rollingRating combines two rating aggregates, weighting each side by its
// reported review count. A side with no reviews contributes nothing.
func rollingRating(existingRating float64, existingCount int, newRating float64, newCount int) float64 {
	switch {
	case existingCount <= 0 && newCount <= 0:
		if newRating > 0 {
			return newRating
		}
		return existingRating
	case existingCount <= 0:
		return newRating
	case newCount <= 0:
		return existingRating
	}
	total := float64(existingCount + newCount)
	return (existingRating*float64(existingCount) + newRating*float64(newCount)) / total
}

// sourceAlreadyMerged reports whether any of the contributing URLs is
// already present on the entity's provenance.
func sourceAlreadyMerged(existing, add []model.Provenance) bool {
	for _, p := range add {
		for _, q := range existing {
			if p.URL == q.URL {
				return true
			}
		}
	}
	return false
}

// appendProvenance adds new provenance entries, skipping URLs already
// recorded so re-running a record does not duplicate its source.
func appendProvenance(existing, add []model.Provenance) []model.Provenance {
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.URL] = true
	}
	out := existing
	for _, p := range add {
		if !seen[p.URL] {
			seen[p.URL] = true
			out = append(out, p)
		}
	}
	return out
}
