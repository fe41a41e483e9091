// ABOUTME: Error taxonomy of the resolution engine
// ABOUTME: Sentinels are matched with errors.Is; no-match is data, not an error
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a malformed request: no clues, blank text, unknown category.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing or empty device collection.
	ErrNotFound = errors.New("not found")
	// ErrIndex marks a failure of the index or embedding provider. Callers may retry.
	ErrIndex = errors.New("index failure")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func indexErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIndex, err)
}
