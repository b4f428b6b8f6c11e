// Package store persists scraped records and owns schema migrations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/provider-directory/internal/model"
)

// RecordStore defines persistence operations for scraped records.
type RecordStore interface {
	Create(ctx context.Context, r *model.ScrapedRecord) error
	Get(ctx context.Context, id string) (*model.ScrapedRecord, error)

	// ListPending returns ids of records awaiting processing, oldest first.
	ListPending(ctx context.Context, limit int) ([]string, error)

	SetStatus(ctx context.Context, id string, status model.RecordStatus) error
	SetFailed(ctx context.Context, id string, cause string) error
	SaveDraft(ctx context.Context, id string, draft *model.DraftDocument) error
	SetSourceName(ctx context.Context, id, sourceName string) error

	// SetIntervention pauses a record with the candidate set, scores, and
	// rendered explanation a reviewer needs.
	SetIntervention(ctx context.Context, id, reason string, candidateIDs []int64, scores map[int64]float64) error

	// LinkEntity records the resolved entity and marks the record completed.
	LinkEntity(ctx context.Context, id string, entityID int64) error

	// GroupEntityID returns the entity another record in the same scrape
	// group already linked to, or nil.
	GroupEntityID(ctx context.Context, groupID string) (*int64, error)

	// ListLinkedToEntity returns prior records linked to an entity.
	ListLinkedToEntity(ctx context.Context, entityID int64) ([]model.ScrapedRecord, error)

	// ListByStatus returns records in a given status, oldest first.
	ListByStatus(ctx context.Context, status model.RecordStatus, limit int) ([]model.ScrapedRecord, error)

	// CountByStatus tallies records per lifecycle status.
	CountByStatus(ctx context.Context) (map[model.RecordStatus]int64, error)

	// Reenqueue flips failed records and stale in-progress records (older
	// than maxAge) back to pending. Returns how many were re-enqueued.
	Reenqueue(ctx context.Context, maxAge time.Duration) (int64, error)
}
