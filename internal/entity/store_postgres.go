package entity

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-directory/internal/db"
)

// PostgresStore implements Store over any db.Querier, so the same code runs
// against the pool or inside the persistence transaction.
type PostgresStore struct {
	q db.Querier
}

// NewPostgresStore creates an entity store bound to q.
func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{q: q}
}

// Columns is the column list every entity scan selects, in scan order.
const Columns = `id, business_name, description, phone, website, license_number, address,
	longitude, latitude, service_area, raw_area_tags, rating, total_reviews,
	merged_data, embedding, provenance, created_at, updated_at`

// Create inserts a new canonical entity and sets its ID.
func (s *PostgresStore) Create(ctx context.Context, e *CanonicalEntity) error {
	serviceArea, mergedData, provenance, err := marshalDocs(e)
	if err != nil {
		return err
	}

	var lon, lat *float64
	if e.Coordinates != nil {
		x, y := e.Coordinates.X(), e.Coordinates.Y()
		lon, lat = &x, &y
	}

	err = s.q.QueryRow(ctx, `
		INSERT INTO entities (
			business_name, description, phone, website, license_number, address,
			longitude, latitude, service_area, raw_area_tags, rating, total_reviews,
			merged_data, embedding, provenance
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15
		) RETURNING id, created_at, updated_at`,
		e.BusinessName, e.Description, e.Phone, e.Website, e.LicenseNumber, e.Address,
		lon, lat, serviceArea, e.RawAreaTags, e.Rating, e.TotalReviews,
		mergedData, e.Embedding, provenance,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "entity: create")
	}
	return nil
}

// Update rewrites an existing entity.
func (s *PostgresStore) Update(ctx context.Context, e *CanonicalEntity) error {
	serviceArea, mergedData, provenance, err := marshalDocs(e)
	if err != nil {
		return err
	}

	var lon, lat *float64
	if e.Coordinates != nil {
		x, y := e.Coordinates.X(), e.Coordinates.Y()
		lon, lat = &x, &y
	}

	_, err = s.q.Exec(ctx, `
		UPDATE entities SET
			business_name=$2, description=$3, phone=$4, website=$5, license_number=$6, address=$7,
			longitude=$8, latitude=$9, service_area=$10, raw_area_tags=$11, rating=$12, total_reviews=$13,
			merged_data=$14, embedding=$15, provenance=$16,
			updated_at=now()
		WHERE id=$1`,
		e.ID,
		e.BusinessName, e.Description, e.Phone, e.Website, e.LicenseNumber, e.Address,
		lon, lat, serviceArea, e.RawAreaTags, e.Rating, e.TotalReviews,
		mergedData, e.Embedding, provenance,
	)
	if err != nil {
		return eris.Wrapf(err, "entity: update %d", e.ID)
	}
	return nil
}

// Get fetches an entity by ID. Returns nil when not found.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*CanonicalEntity, error) {
	row := s.q.QueryRow(ctx, `SELECT `+Columns+` FROM entities WHERE id=$1`, id)
	e, err := scanEntity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "entity: get %d", id)
	}
	return e, nil
}

// ListCandidates finds entities worth scoring against a draft: trigram-similar
// business names plus exact identifier hits the name search would miss.
func (s *PostgresStore) ListCandidates(ctx context.Context, name, phone, website, license string, limit int) ([]CanonicalEntity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+Columns+`
		FROM entities
		WHERE business_name % $1
		   OR ($2 <> '' AND phone = $2)
		   OR ($3 <> '' AND website = $3)
		   OR ($4 <> '' AND lower(license_number) = lower($4))
		ORDER BY similarity(business_name, $1) DESC
		LIMIT $5`, name, phone, website, license, limit)
	if err != nil {
		return nil, eris.Wrap(err, "entity: list candidates")
	}
	defer rows.Close()

	return ScanRows(rows)
}

// ReplaceCategories rewrites the derived category associations for an entity.
func (s *PostgresStore) ReplaceCategories(ctx context.Context, entityID int64, categories []string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM entity_categories WHERE entity_id=$1`, entityID); err != nil {
		return eris.Wrapf(err, "entity: clear categories for %d", entityID)
	}
	if len(categories) == 0 {
		return nil
	}

	records := make([][]any, len(categories))
	for i, cat := range categories {
		records[i] = []any{entityID, cat, true}
	}
	_, err := s.q.CopyFrom(ctx,
		pgx.Identifier{"entity_categories"},
		[]string{"entity_id", "category", "active"},
		pgx.CopyFromRows(records),
	)
	if err != nil {
		return eris.Wrapf(err, "entity: insert categories for %d", entityID)
	}
	return nil
}

// GetCategories returns the active categories for an entity.
func (s *PostgresStore) GetCategories(ctx context.Context, entityID int64) ([]string, error) {
	rows, err := s.q.Query(ctx,
		`SELECT category FROM entity_categories WHERE entity_id=$1 AND active ORDER BY category`, entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "entity: get categories for %d", entityID)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "entity: scan category")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListUngeocoded returns entities with an address but no coordinates.
func (s *PostgresStore) ListUngeocoded(ctx context.Context, limit int) ([]CanonicalEntity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+Columns+`
		FROM entities
		WHERE latitude IS NULL AND address <> ''
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "entity: list ungeocoded")
	}
	defer rows.Close()

	return ScanRows(rows)
}

// UpdateCoordinates backfills a geocode result onto an entity.
func (s *PostgresStore) UpdateCoordinates(ctx context.Context, entityID int64, lon, lat float64, source string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE entities SET longitude=$2, latitude=$3, geocode_source=$4, updated_at=now()
		WHERE id=$1`, entityID, lon, lat, source)
	if err != nil {
		return eris.Wrapf(err, "entity: update coordinates for %d", entityID)
	}
	return nil
}

func marshalDocs(e *CanonicalEntity) (serviceArea, mergedData, provenance []byte, err error) {
	if serviceArea, err = json.Marshal(e.ServiceArea); err != nil {
		return nil, nil, nil, eris.Wrap(err, "entity: marshal service area")
	}
	if e.MergedData != nil {
		if mergedData, err = json.Marshal(e.MergedData); err != nil {
			return nil, nil, nil, eris.Wrap(err, "entity: marshal merged data")
		}
	}
	if e.Provenance != nil {
		if provenance, err = json.Marshal(e.Provenance); err != nil {
			return nil, nil, nil, eris.Wrap(err, "entity: marshal provenance")
		}
	}
	return serviceArea, mergedData, provenance, nil
}

// ScanRows scans entity rows selected with Columns.
func ScanRows(rows pgx.Rows) ([]CanonicalEntity, error) {
	var out []CanonicalEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "entity: scan row")
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEntity(row pgx.Row) (*CanonicalEntity, error) {
	e := &CanonicalEntity{}
	var lon, lat *float64
	var serviceArea, mergedData, provenance []byte

	err := row.Scan(
		&e.ID, &e.BusinessName, &e.Description, &e.Phone, &e.Website, &e.LicenseNumber, &e.Address,
		&lon, &lat, &serviceArea, &e.RawAreaTags, &e.Rating, &e.TotalReviews,
		&mergedData, &e.Embedding, &provenance, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lon != nil && lat != nil {
		e.SetCoordinates(*lon, *lat)
	}
	if len(serviceArea) > 0 {
		if err := json.Unmarshal(serviceArea, &e.ServiceArea); err != nil {
			return nil, eris.Wrap(err, "entity: unmarshal service area")
		}
	}
	if len(mergedData) > 0 {
		if err := json.Unmarshal(mergedData, &e.MergedData); err != nil {
			return nil, eris.Wrap(err, "entity: unmarshal merged data")
		}
	}
	if len(provenance) > 0 {
		if err := json.Unmarshal(provenance, &e.Provenance); err != nil {
			return nil, eris.Wrap(err, "entity: unmarshal provenance")
		}
	}
	return e, nil
}
