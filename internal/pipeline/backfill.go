package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BackfillGeocodes retries geocoding for entities that persisted without
// coordinates. Returns how many entities gained coordinates; addresses the
// provider still cannot match are left for the next pass.
func (o *Orchestrator) BackfillGeocodes(ctx context.Context, limit int) (int, error) {
	ungeocoded, err := o.entities.ListUngeocoded(ctx, limit)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list ungeocoded entities")
	}

	var filled int
	for i := range ungeocoded {
		e := &ungeocoded[i]
		res, geoErr := o.geocoder.Geocode(ctx, e.Address)
		if geoErr != nil {
			zap.L().Debug("pipeline: backfill geocode miss",
				zap.Int64("entity_id", e.ID),
				zap.Error(geoErr),
			)
			continue
		}
		if err := o.entities.UpdateCoordinates(ctx, e.ID, res.Longitude, res.Latitude, res.Source); err != nil {
			return filled, err
		}
		filled++
	}

	zap.L().Info("pipeline: geocode backfill finished",
		zap.Int("candidates", len(ungeocoded)),
		zap.Int("filled", filled),
	)
	return filled, nil
}
