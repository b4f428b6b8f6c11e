// Package pipeline orchestrates the ingestion of scraped records into
// canonical provider entities: extraction, geography normalization,
// identity resolution, field consolidation, and atomic persistence.
//
// Concurrency is across records, never within one record's stages. Each
// record is claimed under a leased lock; a crashed worker's lease expires
// and the record becomes claimable again.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-directory/internal/config"
	"github.com/sells-group/provider-directory/internal/db"
	"github.com/sells-group/provider-directory/internal/entity"
	"github.com/sells-group/provider-directory/internal/geonorm"
	"github.com/sells-group/provider-directory/internal/lock"
	"github.com/sells-group/provider-directory/internal/model"
	"github.com/sells-group/provider-directory/internal/resolve"
	"github.com/sells-group/provider-directory/internal/store"
	"github.com/sells-group/provider-directory/pkg/embed"
	"github.com/sells-group/provider-directory/pkg/extract"
	"github.com/sells-group/provider-directory/pkg/geocode"
)

// candidateLimit bounds how many existing entities are scored per draft.
const candidateLimit = 50

// Outcome summarizes what processing one record produced.
type Outcome string

// Processing outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomePaused    Outcome = "paused"
	OutcomeFailed    Outcome = "failed"
)

// Lease is a held claim on one record.
type Lease interface {
	Release(ctx context.Context)
}

// Locker acquires per-record leases. Acquire returns lock.ErrContended when
// another worker holds the record.
type Locker interface {
	Acquire(ctx context.Context, recordID string) (Lease, error)
}

// redisLocker adapts lock.Manager to the Locker interface.
type redisLocker struct {
	m *lock.Manager
}

// NewRedisLocker wraps a lock.Manager as a Locker.
func NewRedisLocker(m *lock.Manager) Locker {
	return redisLocker{m: m}
}

func (r redisLocker) Acquire(ctx context.Context, recordID string) (Lease, error) {
	lease, err := r.m.Acquire(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// TxRunner runs the persistence step in one atomic transaction, handing fn
// stores bound to that transaction. Readers never observe a half-merged
// entity.
type TxRunner interface {
	InTx(ctx context.Context, fn func(records store.RecordStore, entities entity.Store) error) error
}

// pgTxRunner is the production TxRunner over a pgx pool.
type pgTxRunner struct {
	pool db.Pool
}

// NewTxRunner creates a TxRunner over the given pool.
func NewTxRunner(pool db.Pool) TxRunner {
	return pgTxRunner{pool: pool}
}

func (r pgTxRunner) InTx(ctx context.Context, fn func(records store.RecordStore, entities entity.Store) error) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(store.NewPostgres(tx), entity.NewPostgresStore(tx))
	})
}

// Orchestrator sequences the ingestion stages for scraped records.
type Orchestrator struct {
	cfg       *config.Config
	records   store.RecordStore
	entities  entity.Store
	tx        TxRunner
	locks     Locker
	extractor extract.Client
	geocoder  geocode.Client
	embedder  embed.Client
}

// New creates an Orchestrator with all collaborators.
func New(
	cfg *config.Config,
	records store.RecordStore,
	entities entity.Store,
	tx TxRunner,
	locks Locker,
	extractor extract.Client,
	geocoder geocode.Client,
	embedder embed.Client,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		records:   records,
		entities:  entities,
		tx:        tx,
		locks:     locks,
		extractor: extractor,
		geocoder:  geocoder,
		embedder:  embedder,
	}
}

// Process runs the full stage sequence for one record. A contended lock is
// a skip, not an error; an ambiguous identity is a pause, not a failure.
// Any other stage error marks the record failed with the cause retained.
func (o *Orchestrator) Process(ctx context.Context, recordID string) (Outcome, error) {
	log := zap.L().With(zap.String("record_id", recordID))

	lease, err := o.locks.Acquire(ctx, recordID)
	if err != nil {
		if errors.Is(err, lock.ErrContended) {
			log.Debug("pipeline: record claimed by another worker, skipping")
			return OutcomeSkipped, nil
		}
		return OutcomeFailed, eris.Wrapf(err, "pipeline: acquire lease for %s", recordID)
	}
	defer lease.Release(ctx)

	rec, err := o.records.Get(ctx, recordID)
	if err != nil {
		return OutcomeFailed, eris.Wrapf(err, "pipeline: load record %s", recordID)
	}
	if rec == nil {
		return OutcomeFailed, eris.Errorf("pipeline: record %s not found", recordID)
	}

	if err := o.records.SetStatus(ctx, rec.ID, model.StatusInProgress); err != nil {
		return OutcomeFailed, err
	}

	// runStage logs timing and, on error, marks the record failed with the
	// causing message retained for operators.
	runStage := func(name string, fn func() error) error {
		start := time.Now()
		if stageErr := fn(); stageErr != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(stageErr),
			)
			if failErr := o.records.SetFailed(ctx, rec.ID, stageErr.Error()); failErr != nil {
				log.Warn("pipeline: could not persist failure state", zap.Error(failErr))
			}
			return eris.Wrapf(stageErr, "pipeline: stage %s on %s", name, rec.ID)
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}

	// Stage 1: extract. Skipped when a prior run already saved the draft,
	// so re-entry after a crash is cheap.
	if rec.DraftData == nil {
		err = runStage("extract", func() error {
			draft, exErr := o.extractor.Extract(ctx, extract.Page{
				SourceURL: rec.SourceURL,
				RawHTML:   rec.RawHTML,
				RawText:   rec.RawText,
			})
			if exErr != nil {
				return NewExtractionError(exErr)
			}
			rec.DraftData = draft
			return o.records.SaveDraft(ctx, rec.ID, draft)
		})
		if err != nil {
			return OutcomeFailed, err
		}
	} else {
		log.Debug("pipeline: draft already extracted, skipping stage")
	}

	// Stage 2: load context.
	var groupEntityID *int64
	err = runStage("load_context", func() error {
		if rec.SourceName == "" {
			if name := DetectSourceName(rec.SourceURL); name != "" {
				rec.SourceName = name
				if setErr := o.records.SetSourceName(ctx, rec.ID, name); setErr != nil {
					return setErr
				}
			}
		}
		if rec.ScrapeGroupID != nil {
			gid, grpErr := o.records.GroupEntityID(ctx, *rec.ScrapeGroupID)
			if grpErr != nil {
				return grpErr
			}
			groupEntityID = gid
		}
		if rec.LinkedEntityID != nil {
			prior, listErr := o.records.ListLinkedToEntity(ctx, *rec.LinkedEntityID)
			if listErr != nil {
				return listErr
			}
			log.Debug("pipeline: record previously linked",
				zap.Int64("entity_id", *rec.LinkedEntityID),
				zap.Int("sibling_records", len(prior)),
			)
		}
		return nil
	})
	if err != nil {
		return OutcomeFailed, err
	}

	// Stage 3: normalize geography. Deterministic, never fails.
	geo := geonorm.Normalize(rec.DraftData.BusinessInfo.ServiceAreas)

	// Stage 4: resolve identity.
	var decision resolve.Decision
	err = runStage("resolve", func() error {
		// A prior link or an already-resolved scrape group short-circuits
		// inside Resolve; skip the candidate fetch entirely in that case.
		var candidates []entity.CanonicalEntity
		if rec.LinkedEntityID == nil && groupEntityID == nil {
			bi := rec.DraftData.BusinessInfo
			var listErr error
			candidates, listErr = o.entities.ListCandidates(ctx,
				bi.Name, bi.Phone, bi.Website, bi.License.Number, candidateLimit)
			if listErr != nil {
				return listErr
			}
		}
		decision = resolve.Resolve(resolve.Input{
			Draft:         rec.DraftData,
			PriorLinkedID: rec.LinkedEntityID,
			GroupEntityID: groupEntityID,
			Entities:      candidates,
		}, resolveConfig(o.cfg.Resolve))
		log.Info("pipeline: identity resolved",
			zap.String("action", string(decision.Action)),
			zap.String("reason", decision.Reason),
		)
		return nil
	})
	if err != nil {
		return OutcomeFailed, err
	}

	// Stage 5: ambiguity pauses the record for a human. Deliberate, not a
	// failure; the candidates and scores persist so the reviewer never has
	// to re-run matching.
	if decision.Action == resolve.ActionIntervene {
		ids := make([]int64, len(decision.Candidates))
		for i, c := range decision.Candidates {
			ids[i] = c.EntityID
		}
		if setErr := o.records.SetIntervention(ctx, rec.ID, decision.Reason, ids, decision.Scores); setErr != nil {
			return OutcomeFailed, eris.Wrapf(setErr, "pipeline: pause %s", rec.ID)
		}
		log.Info("pipeline: paused for intervention", zap.Int("candidates", len(ids)))
		return OutcomePaused, nil
	}

	// Stages 6+7: consolidate and persist atomically.
	fresh := consolidate(rec, rec.DraftData, geo)
	err = runStage("persist", func() error {
		return o.persist(ctx, rec, fresh, geo, decision)
	})
	if err != nil {
		return OutcomeFailed, err
	}

	log.Info("pipeline: record completed")
	return OutcomeCompleted, nil
}

// persist runs stage 7: merge into the matched entity or create a new one,
// then link the record and derive categories, all in one transaction. The
// external enrichment calls happen before the transaction opens, so a
// failed embedding leaves no partial write.
func (o *Orchestrator) persist(ctx context.Context, rec *model.ScrapedRecord, fresh *entity.CanonicalEntity, geo geonorm.Result, decision resolve.Decision) error {
	draftMap, err := rec.DraftData.AsMap()
	if err != nil {
		return err
	}

	var target *entity.CanonicalEntity

	if decision.Action == resolve.ActionLink {
		target, err = o.entities.Get(ctx, decision.EntityID)
		if err != nil {
			return err
		}
		if target == nil {
			return eris.Errorf("pipeline: resolved entity %d not found", decision.EntityID)
		}

		oldDescription := target.Description
		target.MergedData = entity.Merge(draftMap, target.MergedData)
		applyDraftFields(target, fresh, geo)

		// Geocode only when the entity has no coordinates yet; failure is
		// non-fatal and backfillable.
		if target.Coordinates == nil && target.Address != "" {
			o.geocodeEntity(ctx, target)
		}

		// Re-embed only when the description text changed. No embedding is
		// ever substituted with a degraded vector.
		if target.Description != "" && target.Description != oldDescription {
			vec, embErr := o.embedder.Embed(ctx, target.Description)
			if embErr != nil {
				return &EmbeddingUnavailableError{Err: embErr}
			}
			target.Embedding = vec
		}
	} else {
		target = fresh
		target.MergedData = entity.Merge(draftMap, nil)

		if target.Address != "" {
			o.geocodeEntity(ctx, target)
		}
		if target.Description != "" {
			vec, embErr := o.embedder.Embed(ctx, target.Description)
			if embErr != nil {
				return &EmbeddingUnavailableError{Err: embErr}
			}
			target.Embedding = vec
		}
	}

	categories := entity.DeriveCategories(entity.ServicesFromMerged(target.MergedData))

	return o.tx.InTx(ctx, func(records store.RecordStore, entities entity.Store) error {
		if decision.Action == resolve.ActionLink {
			if txErr := entities.Update(ctx, target); txErr != nil {
				return txErr
			}
		} else {
			if txErr := entities.Create(ctx, target); txErr != nil {
				return txErr
			}
		}
		if txErr := entities.ReplaceCategories(ctx, target.ID, categories); txErr != nil {
			return txErr
		}
		return records.LinkEntity(ctx, rec.ID, target.ID)
	})
}

// geocodeEntity resolves the entity's address to coordinates. Failure is
// logged and swallowed: the entity persists ungeocoded.
func (o *Orchestrator) geocodeEntity(ctx context.Context, e *entity.CanonicalEntity) {
	res, err := o.geocoder.Geocode(ctx, e.Address)
	if err != nil {
		gerr := &GeocodeUnavailableError{Err: err}
		zap.L().Warn("pipeline: entity persists without coordinates",
			zap.Int64("entity_id", e.ID),
			zap.String("address", e.Address),
			zap.Error(gerr),
		)
		return
	}
	e.SetCoordinates(res.Longitude, res.Latitude)
}

// resolveConfig maps the application config onto the resolution engine's
// explicit tunables.
func resolveConfig(cfg config.ResolveConfig) resolve.Config {
	out := resolve.Config{
		NameWeight:         cfg.NameWeight,
		PhoneWeight:        cfg.PhoneWeight,
		WebsiteWeight:      cfg.WebsiteWeight,
		LicenseWeight:      cfg.LicenseWeight,
		ExactIDBonus:       cfg.ExactIDBonus,
		LinkThreshold:      cfg.LinkThreshold,
		InterveneThreshold: cfg.InterveneThreshold,
		MaxCandidates:      cfg.MaxCandidates,
	}
	if out.LinkThreshold == 0 && out.InterveneThreshold == 0 {
		return resolve.DefaultConfig()
	}
	return out
}
