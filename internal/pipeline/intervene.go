package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-directory/internal/geonorm"
	"github.com/sells-group/provider-directory/internal/model"
	"github.com/sells-group/provider-directory/internal/resolve"
)

// ApplyIntervention resumes a paused record with a human decision: link it
// to one of the recorded candidates, or force creation of a new entity.
// The record moves paused_intervention -> in_progress -> completed|failed.
func (o *Orchestrator) ApplyIntervention(ctx context.Context, recordID string, entityID int64, forceCreate bool) error {
	log := zap.L().With(zap.String("record_id", recordID))

	rec, err := o.records.Get(ctx, recordID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load record %s", recordID)
	}
	if rec == nil {
		return eris.Errorf("pipeline: record %s not found", recordID)
	}
	if rec.Status != model.StatusPausedIntervention {
		return eris.Errorf("pipeline: record %s is %s, not paused for intervention", recordID, rec.Status)
	}
	if rec.DraftData == nil {
		return eris.Errorf("pipeline: paused record %s has no draft data", recordID)
	}

	var decision resolve.Decision
	if forceCreate {
		decision = resolve.Decision{
			Action: resolve.ActionCreate,
			Reason: "reviewer forced creation of a new entity",
		}
	} else {
		if !containsID(rec.CandidateEntityIDs, entityID) {
			return eris.Errorf("pipeline: entity %d is not among the recorded candidates for %s", entityID, recordID)
		}
		decision = resolve.Decision{
			Action:   resolve.ActionLink,
			EntityID: entityID,
			Reason:   "reviewer selected candidate",
		}
	}

	if err := o.records.SetStatus(ctx, rec.ID, model.StatusInProgress); err != nil {
		return err
	}

	geo := geonorm.Normalize(rec.DraftData.BusinessInfo.ServiceAreas)
	fresh := consolidate(rec, rec.DraftData, geo)

	if err := o.persist(ctx, rec, fresh, geo, decision); err != nil {
		if failErr := o.records.SetFailed(ctx, rec.ID, err.Error()); failErr != nil {
			log.Warn("pipeline: could not persist failure state", zap.Error(failErr))
		}
		return eris.Wrapf(err, "pipeline: apply intervention on %s", recordID)
	}

	log.Info("pipeline: intervention applied",
		zap.Bool("force_create", forceCreate),
		zap.Int64("entity_id", entityID),
	)
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
