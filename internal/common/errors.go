package common

import (
	"errors"
	"fmt"
)

// Domain errors - use errors.Is() to check
var (
	ErrNotFound = errors.New("not found")

	// Resource-specific errors
	ErrMeetingNotFound = fmt.Errorf("meeting %w", ErrNotFound)

	// Queue errors
	ErrNotInQueue = errors.New("not in queue")
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
