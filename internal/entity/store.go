package entity

import "context"

// Store defines persistence operations for canonical entities.
type Store interface {
	Create(ctx context.Context, e *CanonicalEntity) error
	Update(ctx context.Context, e *CanonicalEntity) error
	Get(ctx context.Context, id int64) (*CanonicalEntity, error)

	// ListCandidates returns slim entity rows worth scoring against a
	// draft: trigram-similar names plus exact phone/website/license hits.
	ListCandidates(ctx context.Context, name, phone, website, license string, limit int) ([]CanonicalEntity, error)

	// ReplaceCategories rewrites the derived category associations.
	ReplaceCategories(ctx context.Context, entityID int64, categories []string) error
	GetCategories(ctx context.Context, entityID int64) ([]string, error)

	// ListUngeocoded supports the geocode backfill path.
	ListUngeocoded(ctx context.Context, limit int) ([]CanonicalEntity, error)
	UpdateCoordinates(ctx context.Context, entityID int64, lon, lat float64, source string) error
}
