// Package search composes AND-combined filter clauses over canonical
// entities and executes them as one ranked retrieval. With a semantic
// query it blends keyword relevance and embedding cosine similarity
// into a hybrid score and returns a fully materialized ordered list.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-directory/internal/config"
	"github.com/sells-group/provider-directory/internal/db"
	"github.com/sells-group/provider-directory/internal/entity"
	"github.com/sells-group/provider-directory/pkg/embed"
)

// Unit selects the distance unit for radius filters.
type Unit string

const (
	Kilometers Unit = "km"
	Miles      Unit = "mi"
)

const milesToKm = 1.609344

// Op is a comparison operator for nested-field filters. Anything outside
// this set is rejected before SQL is built.
type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

type radiusClause struct {
	lat, lon float64
	km       float64
}

type fieldClause struct {
	path  string
	op    Op
	value any
}

// Query accumulates filter clauses. Each With* call returns a new value,
// so partial queries can be reused as starting points.
type Query struct {
	radius     *radiusClause
	minRating  *float64
	minReviews *int
	counties   []string
	states     []string
	fields     []fieldClause
	licensed   bool
	available  bool

	semanticText string
	minScore     float64
	limit        int
}

// NewQuery returns an empty query matching all entities.
func NewQuery() Query {
	return Query{}
}

// WithinRadius keeps entities geocoded within radius of (lat, lon) and
// annotates each result with its distance. Without a semantic query,
// results sort ascending by distance.
func (q Query) WithinRadius(lat, lon, radius float64, unit Unit) Query {
	km := radius
	if unit == Miles {
		km = radius * milesToKm
	}
	q.radius = &radiusClause{lat: lat, lon: lon, km: km}
	return q
}

// WithMinRating keeps entities rated at least r.
func (q Query) WithMinRating(r float64) Query {
	q.minRating = &r
	return q
}

// WithMinReviews keeps entities with at least n aggregated reviews.
func (q Query) WithMinReviews(n int) Query {
	q.minReviews = &n
	return q
}

// InCounty keeps entities whose structured service area covers county.
func (q Query) InCounty(county string) Query {
	q.counties = append(append([]string(nil), q.counties...), county)
	return q
}

// InState keeps entities whose structured service area covers state.
func (q Query) InState(state string) Query {
	q.states = append(append([]string(nil), q.states...), state)
	return q
}

// WhereField filters on a dotted path into the merged multi-source
// document, e.g. WhereField("services.emergency", OpEq, true).
func (q Query) WhereField(path string, op Op, value any) Query {
	q.fields = append(append([]fieldClause(nil), q.fields...), fieldClause{path: path, op: op, value: value})
	return q
}

// Licensed keeps entities with a known license number.
func (q Query) Licensed() Query {
	q.licensed = true
	return q
}

// Available keeps entities with recorded availability information.
func (q Query) Available() Query {
	q.available = true
	return q
}

// WithSemantic enables hybrid ranking against the natural-language text.
// Results sort descending by hybrid score regardless of other filters.
func (q Query) WithSemantic(text string) Query {
	q.semanticText = text
	return q
}

// WithMinScore raises the hybrid score cutoff. The configured floor
// still applies when it is higher.
func (q Query) WithMinScore(s float64) Query {
	q.minScore = s
	return q
}

// WithLimit caps the number of results.
func (q Query) WithLimit(n int) Query {
	q.limit = n
	return q
}

func (q Query) semantic() bool {
	return strings.TrimSpace(q.semanticText) != ""
}

// Result is one ranked entity. DistanceKm is set only for radius
// queries; the score fields only in semantic mode.
type Result struct {
	Entity     entity.CanonicalEntity
	DistanceKm *float64
	Hybrid     float64
	FullText   float64
	Semantic   float64
}

// Searcher executes queries against the entity table.
type Searcher struct {
	q        db.Querier
	embedder embed.Client
	cfg      config.SearchConfig
}

// New creates a searcher. The embedder is only consulted for semantic
// queries, and only after SQL filtering returns candidate rows.
func New(q db.Querier, embedder embed.Client, cfg config.SearchConfig) *Searcher {
	return &Searcher{q: q, embedder: embedder, cfg: cfg}
}

// Search runs the filter clauses in SQL, then applies hybrid scoring in
// process when a semantic query is present. Entities without an
// embedding never appear in semantic results.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Result, error) {
	sqlStr, args, err := buildSQL(q, s.cfg)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "search: query entities")
	}
	ents, err := entity.ScanRows(rows)
	if err != nil {
		return nil, err
	}

	if !q.semantic() {
		results := make([]Result, 0, len(ents))
		for i := range ents {
			results = append(results, annotate(ents[i], q))
		}
		return results, nil
	}

	if len(ents) == 0 {
		return []Result{}, nil
	}

	vec, err := s.embedder.Embed(ctx, q.semanticText)
	if err != nil {
		return nil, eris.Wrap(err, "search: embed query")
	}
	return s.rank(ents, vec, q), nil
}

// rank scores pre-filtered candidates and returns the ordered survivors.
func (s *Searcher) rank(ents []entity.CanonicalEntity, queryVec []float32, q Query) []Result {
	ftWeight, semWeight := s.cfg.FullTextWeight, s.cfg.SemanticWeight
	if ftWeight == 0 && semWeight == 0 {
		ftWeight, semWeight = 0.3, 0.7
	}
	floor := s.cfg.MinScore
	if floor == 0 {
		floor = 0.35
	}
	threshold := q.minScore
	if floor > threshold {
		threshold = floor
	}

	terms := queryTerms(q.semanticText)
	results := make([]Result, 0, len(ents))
	for i := range ents {
		e := &ents[i]
		if len(e.Embedding) == 0 || len(e.Embedding) != len(queryVec) {
			continue
		}
		ft := fullTextScore(terms, e)
		sem := cosineSimilarity(queryVec, e.Embedding)
		hybrid := ftWeight*ft + semWeight*sem
		if hybrid < threshold {
			continue
		}
		r := annotate(*e, q)
		r.FullText = ft
		r.Semantic = sem
		r.Hybrid = hybrid
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Hybrid != results[j].Hybrid {
			return results[i].Hybrid > results[j].Hybrid
		}
		return results[i].Entity.ID < results[j].Entity.ID
	})

	limit := q.limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func annotate(e entity.CanonicalEntity, q Query) Result {
	r := Result{Entity: e}
	if q.radius != nil && e.Coordinates != nil {
		d := haversineKm(q.radius.lat, q.radius.lon, e.Lat(), e.Lon())
		r.DistanceKm = &d
	}
	return r
}
