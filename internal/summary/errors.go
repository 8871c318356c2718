package summary

import (
	"errors"
	"fmt"

	"github.com/session-insights/internal/models"
)

var (
	// ErrInvalidSubject is returned for an unknown subject kind or an empty id
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRange is returned when a date range is reversed or too long
	ErrInvalidRange = errors.New("invalid date range")
)

// GenerationError reports a failed call to the generation service.
// Nothing is cached when it occurs, so the request can be retried.
type GenerationError struct {
	Subject models.Subject
	Date    string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("summary generation failed for %s on %s: %v", e.Subject, e.Date, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
