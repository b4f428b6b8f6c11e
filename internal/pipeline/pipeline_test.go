package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-directory/internal/config"
	"github.com/sells-group/provider-directory/internal/entity"
	"github.com/sells-group/provider-directory/internal/geonorm"
	"github.com/sells-group/provider-directory/internal/model"
	"github.com/sells-group/provider-directory/pkg/geocode"
)

func testConfig() *config.Config {
	return &config.Config{
		Resolve: config.ResolveConfig{
			NameWeight:         0.40,
			PhoneWeight:        0.30,
			WebsiteWeight:      0.20,
			LicenseWeight:      0.10,
			ExactIDBonus:       15,
			LinkThreshold:      80,
			InterveneThreshold: 65,
			MaxCandidates:      3,
		},
		Ingest: config.IngestConfig{Workers: 2, BatchSize: 10},
	}
}

func testDraft(name, phone string) *model.DraftDocument {
	return &model.DraftDocument{
		BusinessInfo: model.BusinessInfo{
			Name:         name,
			Phone:        phone,
			Description:  "Family-owned roofing contractor serving Northern Virginia since 1995.",
			Address:      "123 Main St, Fairfax, VA",
			ServiceAreas: []string{"Northern Virginia"},
		},
		Services: model.Services{Offered: []string{"roof repair", "gutter cleaning"}},
		Reviews:  model.Reviews{Rating: 4.6, TotalReviews: 41},
	}
}

type harness struct {
	records   *fakeRecordStore
	entities  *fakeEntityStore
	tx        *fakeTxRunner
	locks     *fakeLocker
	extractor *fakeExtractor
	geocoder  *fakeGeocoder
	embedder  *fakeEmbedder
	orch      *Orchestrator
}

func newHarness(records *fakeRecordStore, entities *fakeEntityStore) *harness {
	h := &harness{
		records:   records,
		entities:  entities,
		tx:        &fakeTxRunner{records: records, entities: entities},
		locks:     newFakeLocker(),
		extractor: &fakeExtractor{draft: testDraft("ABC Roofing", "703-555-0100")},
		geocoder:  &fakeGeocoder{result: &geocode.Result{Latitude: 38.84, Longitude: -77.30, Source: "census"}},
		embedder:  &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}},
	}
	h.orch = New(testConfig(), records, entities, h.tx, h.locks, h.extractor, h.geocoder, h.embedder)
	return h
}

func pendingRecord(id string) *model.ScrapedRecord {
	return &model.ScrapedRecord{
		ID:        id,
		SourceURL: "https://www.yelp.com/biz/abc-roofing-fairfax",
		RawHTML:   "<html>ABC Roofing</html>",
		Status:    model.StatusPending,
	}
}

func TestProcessCreatesNewEntity(t *testing.T) {
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.LinkedEntityID)
	assert.Equal(t, "Yelp", got.SourceName)
	require.NotNil(t, got.DraftData)

	e, _ := h.entities.Get(context.Background(), *got.LinkedEntityID)
	require.NotNil(t, e)
	assert.Equal(t, "ABC Roofing", e.BusinessName)
	assert.NotNil(t, e.Coordinates)
	assert.NotEmpty(t, e.Embedding)
	assert.Contains(t, e.ServiceArea.Counties, "Fairfax")
	require.Len(t, e.Provenance, 1)
	assert.Equal(t, rec.SourceURL, e.Provenance[0].URL)

	cats, _ := h.entities.GetCategories(context.Background(), e.ID)
	assert.Contains(t, cats, "roofing")
	assert.Equal(t, 1, h.tx.ran)
}

func TestProcessLinksToExistingEntity(t *testing.T) {
	existing := &entity.CanonicalEntity{
		ID:           7,
		BusinessName: "A.B.C. Roofing Co.",
		Phone:        "(703) 555-0100",
		Rating:       4.0,
		TotalReviews: 10,
		MergedData: map[string]any{
			"business_info": map[string]any{"name": "A.B.C. Roofing Co."},
		},
	}
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore(existing))

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	got, _ := h.records.Get(context.Background(), "r1")
	require.NotNil(t, got.LinkedEntityID)
	assert.Equal(t, int64(7), *got.LinkedEntityID)

	e, _ := h.entities.Get(context.Background(), 7)
	// Rolling average weighted by review counts: (4.0*10 + 4.6*41) / 51.
	assert.InDelta(t, (4.0*10+4.6*41)/51.0, e.Rating, 0.001)
	assert.Equal(t, 41, e.TotalReviews)
	// Description was empty before, so the merge set it and embedded it.
	assert.NotEmpty(t, e.Embedding)
	assert.Len(t, e.Provenance, 1)
}

func TestPersistInterleavedWritersLastWins(t *testing.T) {
	// Two workers resolve distinct records to the same entity and each runs
	// the read-merge-write sequence against a snapshot fetched before the
	// other committed. The second Update overwrites the first wholesale:
	// the surviving document is the last writer's merge, still internally
	// consistent, with the first writer's additions dropped rather than
	// interleaved into a corrupt state.
	existing := &entity.CanonicalEntity{
		ID:           7,
		BusinessName: "A.B.C. Roofing Co.",
		Rating:       4.0,
		TotalReviews: 10,
		MergedData: map[string]any{
			"business_info": map[string]any{"name": "A.B.C. Roofing Co."},
		},
	}
	h := newHarness(newFakeRecordStore(), newFakeEntityStore(existing))
	ctx := context.Background()

	recA := pendingRecord("rA")
	recA.SourceURL = "https://www.angi.com/companylist/abc-roofing"
	recA.DraftData = testDraft("ABC Roofing", "703-555-0100")
	recA.DraftData.Services.Offered = append(recA.DraftData.Services.Offered, "siding installation")

	recB := pendingRecord("rB")
	recB.DraftData = testDraft("ABC Roofing", "703-555-0100")
	recB.DraftData.BusinessInfo.Description =
		"Full-service roofing and exteriors contractor covering all of Fairfax County and beyond."

	write := func(rec *model.ScrapedRecord, snap *entity.CanonicalEntity) {
		draftMap, err := rec.DraftData.AsMap()
		require.NoError(t, err)
		snap.MergedData = entity.Merge(draftMap, snap.MergedData)
		applyDraftFields(snap, consolidate(rec, rec.DraftData, geonorm.Result{}), geonorm.Result{})
		require.NoError(t, h.entities.Update(ctx, snap))
	}

	snapA, err := h.entities.Get(ctx, 7)
	require.NoError(t, err)
	snapB, err := h.entities.Get(ctx, 7)
	require.NoError(t, err)

	write(recA, snapA)
	write(recB, snapB)

	final, err := h.entities.Get(ctx, 7)
	require.NoError(t, err)

	// The last writer's prefer-richer values won.
	assert.Equal(t, recB.DraftData.BusinessInfo.Description, final.Description)
	assert.InDelta(t, (4.0*10+4.6*41)/51.0, final.Rating, 0.001)
	assert.Equal(t, 41, final.TotalReviews)
	require.Len(t, final.Provenance, 1)
	assert.Equal(t, recB.SourceURL, final.Provenance[0].URL)

	// The first writer's additions were overwritten, not mixed in.
	services := entity.ServicesFromMerged(final.MergedData)
	assert.Contains(t, services, "roof repair")
	assert.NotContains(t, services, "siding installation")

	// The losing write was itself a valid document before being replaced;
	// the race costs ordering, not integrity.
	assert.Contains(t, entity.ServicesFromMerged(snapA.MergedData), "siding installation")
	bi, ok := final.MergedData["business_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A.B.C. Roofing Co.", bi["name"])
}

func TestProcessPausesInAmbiguityBand(t *testing.T) {
	// Similar name, no shared identifiers: lands between the thresholds.
	existing := &entity.CanonicalEntity{
		ID:           3,
		BusinessName: "Alpha Roofing Contractors",
	}
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore(existing))
	h.extractor.draft = testDraft("Alpha Roofing Company", "")

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaused, outcome)

	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, model.StatusPausedIntervention, got.Status)
	assert.Equal(t, []int64{3}, got.CandidateEntityIDs)
	assert.Contains(t, got.InterventionReason, "ambiguous match")
	assert.NotEmpty(t, got.MatchScores)
	assert.Zero(t, h.tx.ran)
}

func TestProcessSkipsContendedRecord(t *testing.T) {
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())
	h.locks.contended["r1"] = true

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestProcessExtractionFailureMarksFailed(t *testing.T) {
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())
	h.extractor.err = eris.New("model timed out")

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, IsExtractionError(err))

	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.LastError, "model timed out")
}

func TestProcessSkipsExtractionWhenDraftPresent(t *testing.T) {
	rec := pendingRecord("r1")
	rec.DraftData = testDraft("ABC Roofing", "703-555-0100")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Zero(t, h.extractor.calls)
}

func TestProcessShortCircuitsPriorLink(t *testing.T) {
	entityID := int64(9)
	existing := &entity.CanonicalEntity{ID: 9, BusinessName: "ABC Roofing"}
	rec := pendingRecord("r1")
	rec.Status = model.StatusCompleted
	rec.LinkedEntityID = &entityID
	rec.DraftData = testDraft("ABC Roofing", "703-555-0100")

	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore(existing))

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	// Prior link wins without fetching or scoring candidates.
	assert.Zero(t, h.entities.candidateFetches)
	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, int64(9), *got.LinkedEntityID)
}

func TestProcessScrapeGroupShortCircuit(t *testing.T) {
	entityID := int64(4)
	group := "group-1"
	existing := &entity.CanonicalEntity{ID: 4, BusinessName: "Different Name Entirely"}

	sibling := pendingRecord("r0")
	sibling.Status = model.StatusCompleted
	sibling.ScrapeGroupID = &group
	sibling.LinkedEntityID = &entityID

	rec := pendingRecord("r1")
	rec.ScrapeGroupID = &group

	h := newHarness(newFakeRecordStore(sibling, rec), newFakeEntityStore(existing))

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	assert.Zero(t, h.entities.candidateFetches)
	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, int64(4), *got.LinkedEntityID)
}

func TestProcessEmbeddingFailureAbortsPersist(t *testing.T) {
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())
	h.embedder.err = eris.New("embedding api down")

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, IsEmbeddingUnavailable(err))

	// The failure happened before the transaction opened: nothing persisted.
	assert.Zero(t, h.tx.ran)
	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Nil(t, got.LinkedEntityID)
}

func TestProcessGeocodeFailureIsNonFatal(t *testing.T) {
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())
	h.geocoder.err = geocode.ErrNotFound

	outcome, err := h.orch.Process(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	got, _ := h.records.Get(context.Background(), "r1")
	e, _ := h.entities.Get(context.Background(), *got.LinkedEntityID)
	assert.Nil(t, e.Coordinates)
}

func TestRunBatchTalliesOutcomes(t *testing.T) {
	r1 := pendingRecord("r1")
	r2 := pendingRecord("r2")
	r3 := pendingRecord("r3")
	h := newHarness(newFakeRecordStore(r1, r2, r3), newFakeEntityStore())
	h.locks.contended["r3"] = true

	stats, err := h.orch.RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total())
	assert.Equal(t, 1, stats.Skipped)
	// r1 and r2 describe the same business: the first creates, the second
	// links or pauses depending on arrival order, but neither fails.
	assert.Zero(t, stats.Failed)
}

func TestApplyInterventionLinkCandidate(t *testing.T) {
	existing := &entity.CanonicalEntity{ID: 3, BusinessName: "ABC Roofing and Exteriors"}
	rec := pendingRecord("r1")
	rec.Status = model.StatusPausedIntervention
	rec.DraftData = testDraft("ABC Roofing", "")
	rec.CandidateEntityIDs = []int64{3}

	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore(existing))

	err := h.orch.ApplyIntervention(context.Background(), "r1", 3, false)
	require.NoError(t, err)

	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, int64(3), *got.LinkedEntityID)
	assert.Empty(t, got.InterventionReason)
}

func TestApplyInterventionForceCreate(t *testing.T) {
	existing := &entity.CanonicalEntity{ID: 3, BusinessName: "ABC Roofing and Exteriors"}
	rec := pendingRecord("r1")
	rec.Status = model.StatusPausedIntervention
	rec.DraftData = testDraft("ABC Roofing", "")
	rec.CandidateEntityIDs = []int64{3}

	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore(existing))

	err := h.orch.ApplyIntervention(context.Background(), "r1", 0, true)
	require.NoError(t, err)

	got, _ := h.records.Get(context.Background(), "r1")
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.LinkedEntityID)
	assert.NotEqual(t, int64(3), *got.LinkedEntityID)
}

func TestApplyInterventionRejectsUnknownCandidate(t *testing.T) {
	rec := pendingRecord("r1")
	rec.Status = model.StatusPausedIntervention
	rec.DraftData = testDraft("ABC Roofing", "")
	rec.CandidateEntityIDs = []int64{3}

	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())

	err := h.orch.ApplyIntervention(context.Background(), "r1", 99, false)
	assert.Error(t, err)
}

func TestApplyInterventionRejectsUnpausedRecord(t *testing.T) {
	rec := pendingRecord("r1")
	h := newHarness(newFakeRecordStore(rec), newFakeEntityStore())

	err := h.orch.ApplyIntervention(context.Background(), "r1", 3, false)
	assert.Error(t, err)
}

func TestBackfillGeocodes(t *testing.T) {
	e1 := &entity.CanonicalEntity{ID: 1, BusinessName: "A", Address: "123 Main St"}
	e2 := &entity.CanonicalEntity{ID: 2, BusinessName: "B", Address: "456 Oak Ave"}
	e3 := &entity.CanonicalEntity{ID: 3, BusinessName: "C"} // no address
	h := newHarness(newFakeRecordStore(), newFakeEntityStore(e1, e2, e3))

	filled, err := h.orch.BackfillGeocodes(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, filled)

	got, _ := h.entities.Get(context.Background(), 1)
	assert.NotNil(t, got.Coordinates)
}
