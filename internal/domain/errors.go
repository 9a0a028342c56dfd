package domain

import "errors"

var (
	// ErrNotFound means the id is absent or its TTL ran out.
	ErrNotFound = errors.New("message not found")

	// ErrAttemptsExceeded means the read-attempt cap was hit and the record
	// has been purged.
	ErrAttemptsExceeded = errors.New("too many attempts")

	// ErrRateLimited means the delete-attempt cap was hit. The record is
	// left untouched.
	ErrRateLimited = errors.New("rate limited")

	// ErrMissingParameter is returned before the store is touched when a
	// required input is empty.
	ErrMissingParameter = errors.New("missing parameter")

	ErrInvalidExpiry = errors.New("invalid expiry")
	ErrInvalidBundle = errors.New("invalid file bundle")

	// ErrInvalidText means a message or file name is not valid UTF-8 and
	// could not be stored without altering it.
	ErrInvalidText = errors.New("text is not valid UTF-8")

	// ErrBackend wraps any failure of the key-value store.
	ErrBackend = errors.New("backend failure")
)
