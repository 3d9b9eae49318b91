package storage

import "errors"

var (
	// ErrInvalidInput is returned for empty payloads, disallowed extensions
	// and filenames that try to escape a category directory.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when the source artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrStorage covers every filesystem failure while writing or moving.
	ErrStorage = errors.New("storage failure")
)
