package model

import "github.com/m-mizutani/goerr/v2"

// Failure categories carry an ID so that Wrap on them keeps the cause chain
// while errors.Is still reports the category.
var (
	// ErrInvalidInput means the caller supplied neither question text nor image, no profile, or a malformed image.
	ErrInvalidInput = goerr.New("invalid input")

	// ErrMatchLookupFailed means history could not be searched (store or embedding failure). Retryable.
	ErrMatchLookupFailed = goerr.New("match lookup failed", goerr.ID("match_lookup_failed"))

	// ErrGenerationFailed means the answer generator produced no usable answer. Retryable.
	ErrGenerationFailed = goerr.New("answer generation failed", goerr.ID("generation_failed"))

	// ErrRecordingFailed means a generated answer could not be appended to history.
	ErrRecordingFailed = goerr.New("recording answer failed", goerr.ID("recording_failed"))

	// ErrDuplicateQuestion is returned by history stores when a record with the same question key already exists.
	ErrDuplicateQuestion = goerr.New("duplicate question")

	// ErrRecordNotFound is returned when a history index is out of range.
	ErrRecordNotFound = goerr.New("record not found")
)
