package pipeline

import (
	"errors"
)

// ExtractionError wraps a failure of the extraction collaborator: timeout,
// transport failure, or output that did not validate against the draft
// schema. The affected stage fails; the record is marked failed.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError wraps err as an ExtractionError.
func NewExtractionError(err error) *ExtractionError {
	return &ExtractionError{Err: err}
}

// IsExtractionError reports whether any error in the chain is an
// ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// GeocodeUnavailableError wraps a geocoding failure. Non-fatal: the entity
// persists with nil coordinates and is backfillable later.
type GeocodeUnavailableError struct {
	Err error
}

func (e *GeocodeUnavailableError) Error() string {
	return "geocode unavailable: " + e.Err.Error()
}

func (e *GeocodeUnavailableError) Unwrap() error {
	return e.Err
}

// EmbeddingUnavailableError wraps an embedding failure. Fatal to the
// persistence stage: a degraded or garbage vector would silently corrupt
// all future semantic search, so nothing is written.
type EmbeddingUnavailableError struct {
	Err error
}

func (e *EmbeddingUnavailableError) Error() string {
	return "embedding unavailable: " + e.Err.Error()
}

func (e *EmbeddingUnavailableError) Unwrap() error {
	return e.Err
}

// IsEmbeddingUnavailable reports whether any error in the chain is an
// EmbeddingUnavailableError.
func IsEmbeddingUnavailable(err error) bool {
	var ee *EmbeddingUnavailableError
	return errors.As(err, &ee)
}
