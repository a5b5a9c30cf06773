package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownTenant rejects a request before it enters the answer pipeline.
	ErrUnknownTenant = errors.New("unknown tenant")

	// Stage-local faults. Each one is converted into the next stage's fallback
	// and never reaches an end user verbatim.
	ErrSchemaUnavailable     = errors.New("schema unavailable")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrExtractionFailed      = errors.New("no query could be extracted")
	ErrValidationRejected    = errors.New("query rejected by validation")
	ErrExecutionFailed       = errors.New("query execution failed")
)
