package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-directory/internal/db"
	"github.com/sells-group/provider-directory/internal/model"
)

// PostgresRecordStore implements RecordStore over any db.Querier.
type PostgresRecordStore struct {
	q db.Querier
}

// NewPostgres creates a record store bound to q.
func NewPostgres(q db.Querier) *PostgresRecordStore {
	return &PostgresRecordStore{q: q}
}

const recordColumns = `id, source_url, source_name, raw_html, raw_text, draft_data, status,
	linked_entity_id, intervention_reason, candidate_entity_ids, match_scores,
	scrape_group_id, last_error, created_at, updated_at`

// Create inserts a new scraped record, assigning an id when absent.
func (s *PostgresRecordStore) Create(ctx context.Context, r *model.ScrapedRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.StatusPending
	}

	draft, scores, err := marshalRecordDocs(r)
	if err != nil {
		return err
	}

	err = s.q.QueryRow(ctx, `
		INSERT INTO scraped_records (
			id, source_url, source_name, raw_html, raw_text, draft_data, status,
			linked_entity_id, intervention_reason, candidate_entity_ids, match_scores,
			scrape_group_id, last_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		r.ID, r.SourceURL, r.SourceName, r.RawHTML, r.RawText, draft, r.Status,
		r.LinkedEntityID, r.InterventionReason, r.CandidateEntityIDs, scores,
		r.ScrapeGroupID, r.LastError,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "store: create record")
	}
	return nil
}

// Get fetches a record by id. Returns nil when not found.
func (s *PostgresRecordStore) Get(ctx context.Context, id string) (*model.ScrapedRecord, error) {
	row := s.q.QueryRow(ctx, `SELECT `+recordColumns+` FROM scraped_records WHERE id=$1`, id)
	r, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get record %s", id)
	}
	return r, nil
}

// ListPending returns ids of pending records, oldest first.
func (s *PostgresRecordStore) ListPending(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(ctx, `
		SELECT id FROM scraped_records
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`, model.StatusPending, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list pending")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "store: scan pending id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetStatus updates a record's lifecycle status.
func (s *PostgresRecordStore) SetStatus(ctx context.Context, id string, status model.RecordStatus) error {
	_, err := s.q.Exec(ctx,
		`UPDATE scraped_records SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return eris.Wrapf(err, "store: set status %s on %s", status, id)
	}
	return nil
}

// SetFailed marks a record failed, retaining the causing message for
// operators.
func (s *PostgresRecordStore) SetFailed(ctx context.Context, id, cause string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE scraped_records SET status=$2, last_error=$3, updated_at=now()
		WHERE id=$1`, id, model.StatusFailed, cause)
	if err != nil {
		return eris.Wrapf(err, "store: set failed on %s", id)
	}
	return nil
}

// SaveDraft persists extraction output so re-entry after a crash skips the
// extraction stage.
func (s *PostgresRecordStore) SaveDraft(ctx context.Context, id string, draft *model.DraftDocument) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return eris.Wrap(err, "store: marshal draft")
	}
	_, err = s.q.Exec(ctx,
		`UPDATE scraped_records SET draft_data=$2, updated_at=now() WHERE id=$1`, id, data)
	if err != nil {
		return eris.Wrapf(err, "store: save draft on %s", id)
	}
	return nil
}

// SetSourceName stores the detected human-readable source name.
func (s *PostgresRecordStore) SetSourceName(ctx context.Context, id, sourceName string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE scraped_records SET source_name=$2, updated_at=now() WHERE id=$1`, id, sourceName)
	if err != nil {
		return eris.Wrapf(err, "store: set source name on %s", id)
	}
	return nil
}

// SetIntervention pauses a record for human review.
func (s *PostgresRecordStore) SetIntervention(ctx context.Context, id, reason string, candidateIDs []int64, scores map[int64]float64) error {
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return eris.Wrap(err, "store: marshal match scores")
	}
	_, err = s.q.Exec(ctx, `
		UPDATE scraped_records SET
			status=$2, intervention_reason=$3, candidate_entity_ids=$4, match_scores=$5,
			updated_at=now()
		WHERE id=$1`,
		id, model.StatusPausedIntervention, reason, candidateIDs, scoresJSON)
	if err != nil {
		return eris.Wrapf(err, "store: set intervention on %s", id)
	}
	return nil
}

// LinkEntity records the resolved entity and completes the record.
func (s *PostgresRecordStore) LinkEntity(ctx context.Context, id string, entityID int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE scraped_records SET
			status=$2, linked_entity_id=$3, intervention_reason='', last_error='',
			updated_at=now()
		WHERE id=$1`,
		id, model.StatusCompleted, entityID)
	if err != nil {
		return eris.Wrapf(err, "store: link record %s to entity %d", id, entityID)
	}
	return nil
}

// GroupEntityID finds the entity another record in the scrape group already
// resolved to.
func (s *PostgresRecordStore) GroupEntityID(ctx context.Context, groupID string) (*int64, error) {
	var entityID int64
	err := s.q.QueryRow(ctx, `
		SELECT linked_entity_id FROM scraped_records
		WHERE scrape_group_id=$1 AND linked_entity_id IS NOT NULL
		ORDER BY updated_at
		LIMIT 1`, groupID).Scan(&entityID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: group entity for %s", groupID)
	}
	return &entityID, nil
}

// ListLinkedToEntity returns prior records linked to an entity.
func (s *PostgresRecordStore) ListLinkedToEntity(ctx context.Context, entityID int64) ([]model.ScrapedRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+recordColumns+` FROM scraped_records
		WHERE linked_entity_id=$1
		ORDER BY created_at`, entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list records for entity %d", entityID)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByStatus returns records in a status, oldest first.
func (s *PostgresRecordStore) ListByStatus(ctx context.Context, status model.RecordStatus, limit int) ([]model.ScrapedRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+recordColumns+` FROM scraped_records
		WHERE status=$1
		ORDER BY created_at
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list records by status %s", status)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountByStatus tallies records per lifecycle status.
func (s *PostgresRecordStore) CountByStatus(ctx context.Context) (map[model.RecordStatus]int64, error) {
	rows, err := s.q.Query(ctx,
		`SELECT status, count(*) FROM scraped_records GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "store: count by status")
	}
	defer rows.Close()

	out := make(map[model.RecordStatus]int64)
	for rows.Next() {
		var status model.RecordStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "store: scan status count")
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Reenqueue flips failed records and stale in-progress records back to
// pending so the next ingest pass retries them.
func (s *PostgresRecordStore) Reenqueue(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE scraped_records SET status=$1, updated_at=now()
		WHERE status = $2
		   OR (status = $3 AND updated_at < now() - $4::interval)`,
		model.StatusPending, model.StatusFailed, model.StatusInProgress, maxAge.String())
	if err != nil {
		return 0, eris.Wrap(err, "store: reenqueue")
	}
	return tag.RowsAffected(), nil
}

func marshalRecordDocs(r *model.ScrapedRecord) (draft, scores []byte, err error) {
	if r.DraftData != nil {
		if draft, err = json.Marshal(r.DraftData); err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal draft data")
		}
	}
	if r.MatchScores != nil {
		if scores, err = json.Marshal(r.MatchScores); err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal match scores")
		}
	}
	return draft, scores, nil
}

func scanRecords(rows pgx.Rows) ([]model.ScrapedRecord, error) {
	var out []model.ScrapedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan record row")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*model.ScrapedRecord, error) {
	r := &model.ScrapedRecord{}
	var draft, scores []byte

	err := row.Scan(
		&r.ID, &r.SourceURL, &r.SourceName, &r.RawHTML, &r.RawText, &draft, &r.Status,
		&r.LinkedEntityID, &r.InterventionReason, &r.CandidateEntityIDs, &scores,
		&r.ScrapeGroupID, &r.LastError, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(draft) > 0 {
		r.DraftData = &model.DraftDocument{}
		if err := json.Unmarshal(draft, r.DraftData); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal draft data")
		}
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &r.MatchScores); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal match scores")
		}
	}
	return r, nil
}
