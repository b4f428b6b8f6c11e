// Package model defines the core types shared across the ingestion pipeline.
package model

import (
	"time"
)

// RecordStatus is the lifecycle state of a scraped record.
type RecordStatus string

// Record statuses.
const (
	StatusPending             RecordStatus = "pending"
	StatusInProgress          RecordStatus = "in_progress"
	StatusPausedIntervention  RecordStatus = "paused_intervention"
	StatusCompleted           RecordStatus = "completed"
	StatusFailed              RecordStatus = "failed"
)

// ScrapedRecord is one scraped web page about a service provider, moving
// through the pipeline. Created by the scraper; mutated only by pipeline
// stages; never deleted.
type ScrapedRecord struct {
	ID         string `json:"id" db:"id"`
	SourceURL  string `json:"source_url" db:"source_url"`
	SourceName string `json:"source_name,omitempty" db:"source_name"`
	RawHTML    string `json:"raw_html,omitempty" db:"raw_html"`
	RawText    string `json:"raw_text,omitempty" db:"raw_text"`

	// DraftData is nil until the extraction stage has run.
	DraftData *DraftDocument `json:"draft_data,omitempty" db:"draft_data"`

	Status         RecordStatus `json:"status" db:"status"`
	LinkedEntityID *int64       `json:"linked_entity_id,omitempty" db:"linked_entity_id"`

	// Intervention state, populated when identity resolution is ambiguous.
	InterventionReason string            `json:"intervention_reason,omitempty" db:"intervention_reason"`
	CandidateEntityIDs []int64           `json:"candidate_entity_ids,omitempty" db:"candidate_entity_ids"`
	MatchScores        map[int64]float64 `json:"match_scores,omitempty" db:"match_scores"`

	// ScrapeGroupID groups pages known up-front to describe one provider.
	ScrapeGroupID *string `json:"scrape_group_id,omitempty" db:"scrape_group_id"`

	// LastError retains the causing message when Status is failed.
	LastError string `json:"last_error,omitempty" db:"last_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SignalScores holds the per-signal components of a match score (0-100 each).
type SignalScores struct {
	Name    float64 `json:"name"`
	Phone   float64 `json:"phone"`
	Website float64 `json:"website"`
	License float64 `json:"license"`
}

// MatchCandidate is a scored candidate entity for a draft record. Transient:
// persisted only inside a record's intervention state, never standalone.
type MatchCandidate struct {
	EntityID   int64        `json:"entity_id"`
	TotalScore float64      `json:"total_score"`
	Signals    SignalScores `json:"signals"`
}

// Provenance records one source that contributed data to a canonical entity.
type Provenance struct {
	SourceName string    `json:"source_name"`
	URL        string    `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
}
