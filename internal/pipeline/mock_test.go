package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-directory/internal/entity"
	"github.com/sells-group/provider-directory/internal/lock"
	"github.com/sells-group/provider-directory/internal/model"
	"github.com/sells-group/provider-directory/internal/store"
	"github.com/sells-group/provider-directory/pkg/extract"
	"github.com/sells-group/provider-directory/pkg/geocode"
)

// fakeRecordStore is an in-memory RecordStore.
type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]*model.ScrapedRecord
}

func newFakeRecordStore(records ...*model.ScrapedRecord) *fakeRecordStore {
	s := &fakeRecordStore{records: map[string]*model.ScrapedRecord{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeRecordStore) Create(_ context.Context, r *model.ScrapedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
	return nil
}

func (s *fakeRecordStore) Get(_ context.Context, id string) (*model.ScrapedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRecordStore) ListPending(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.records {
		if r.Status == model.StatusPending && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeRecordStore) SetStatus(_ context.Context, id string, status model.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id].Status = status
	return nil
}

func (s *fakeRecordStore) SetFailed(_ context.Context, id, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id].Status = model.StatusFailed
	s.records[id].LastError = cause
	return nil
}

func (s *fakeRecordStore) SaveDraft(_ context.Context, id string, draft *model.DraftDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id].DraftData = draft
	return nil
}

func (s *fakeRecordStore) SetSourceName(_ context.Context, id, sourceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id].SourceName = sourceName
	return nil
}

func (s *fakeRecordStore) SetIntervention(_ context.Context, id, reason string, candidateIDs []int64, scores map[int64]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[id]
	r.Status = model.StatusPausedIntervention
	r.InterventionReason = reason
	r.CandidateEntityIDs = candidateIDs
	r.MatchScores = scores
	return nil
}

func (s *fakeRecordStore) LinkEntity(_ context.Context, id string, entityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[id]
	r.Status = model.StatusCompleted
	r.LinkedEntityID = &entityID
	r.InterventionReason = ""
	r.LastError = ""
	return nil
}

func (s *fakeRecordStore) GroupEntityID(_ context.Context, groupID string) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ScrapeGroupID != nil && *r.ScrapeGroupID == groupID && r.LinkedEntityID != nil {
			id := *r.LinkedEntityID
			return &id, nil
		}
	}
	return nil, nil
}

func (s *fakeRecordStore) ListLinkedToEntity(_ context.Context, entityID int64) ([]model.ScrapedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScrapedRecord
	for _, r := range s.records {
		if r.LinkedEntityID != nil && *r.LinkedEntityID == entityID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeRecordStore) ListByStatus(_ context.Context, status model.RecordStatus, limit int) ([]model.ScrapedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScrapedRecord
	for _, r := range s.records {
		if r.Status == status && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeRecordStore) CountByStatus(_ context.Context) (map[model.RecordStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[model.RecordStatus]int64{}
	for _, r := range s.records {
		out[r.Status]++
	}
	return out, nil
}

func (s *fakeRecordStore) Reenqueue(_ context.Context, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.Status == model.StatusFailed {
			r.Status = model.StatusPending
			n++
		}
	}
	return n, nil
}

// fakeEntityStore is an in-memory entity.Store.
type fakeEntityStore struct {
	mu         sync.Mutex
	entities   map[int64]*entity.CanonicalEntity
	categories map[int64][]string
	nextID     int64

	candidateFetches int
}

func newFakeEntityStore(entities ...*entity.CanonicalEntity) *fakeEntityStore {
	s := &fakeEntityStore{
		entities:   map[int64]*entity.CanonicalEntity{},
		categories: map[int64][]string{},
		nextID:     1,
	}
	for _, e := range entities {
		s.entities[e.ID] = e
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	return s
}

func (s *fakeEntityStore) Create(_ context.Context, e *entity.CanonicalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	cp := *e
	s.entities[e.ID] = &cp
	return nil
}

func (s *fakeEntityStore) Update(_ context.Context, e *entity.CanonicalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entities[e.ID] = &cp
	return nil
}

func (s *fakeEntityStore) Get(_ context.Context, id int64) (*entity.CanonicalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *fakeEntityStore) ListCandidates(_ context.Context, _, _, _, _ string, _ int) ([]entity.CanonicalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateFetches++
	var out []entity.CanonicalEntity
	for _, e := range s.entities {
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeEntityStore) ReplaceCategories(_ context.Context, entityID int64, categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[entityID] = categories
	return nil
}

func (s *fakeEntityStore) GetCategories(_ context.Context, entityID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories[entityID], nil
}

func (s *fakeEntityStore) ListUngeocoded(_ context.Context, limit int) ([]entity.CanonicalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.CanonicalEntity
	for _, e := range s.entities {
		if e.Coordinates == nil && e.Address != "" && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeEntityStore) UpdateCoordinates(_ context.Context, entityID int64, lon, lat float64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entityID].SetCoordinates(lon, lat)
	return nil
}

// fakeTxRunner runs the persistence callback against the same fakes,
// recording whether a transaction ran.
type fakeTxRunner struct {
	records  *fakeRecordStore
	entities *fakeEntityStore
	ran      int
	failWith error
}

func (r *fakeTxRunner) InTx(_ context.Context, fn func(records store.RecordStore, entities entity.Store) error) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.ran++
	return fn(r.records, r.entities)
}

// fakeLocker hands out leases unless a record is marked contended.
type fakeLocker struct {
	mu        sync.Mutex
	contended map[string]bool
	acquired  []string
	released  []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{contended: map[string]bool{}}
}

type fakeLease struct {
	locker *fakeLocker
	id     string
}

func (l *fakeLease) Release(_ context.Context) {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	l.locker.released = append(l.locker.released, l.id)
}

func (f *fakeLocker) Acquire(_ context.Context, recordID string) (Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contended[recordID] {
		return nil, lock.ErrContended
	}
	f.acquired = append(f.acquired, recordID)
	return &fakeLease{locker: f, id: recordID}, nil
}

// fakeExtractor returns a canned draft or error.
type fakeExtractor struct {
	draft *model.DraftDocument
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ extract.Page) (*model.DraftDocument, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.draft, nil
}

// fakeGeocoder returns fixed coordinates or an error.
type fakeGeocoder struct {
	result *geocode.Result
	err    error
	calls  int
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeEmbedder returns a fixed vector or an error.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vector == nil {
		return nil, eris.New("fake embedder has no vector")
	}
	return f.vector, nil
}
