package eventlog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEventType is returned when an event type is outside the
	// closed enumeration.
	ErrInvalidEventType = errors.New("eventlog: invalid event type")

	// ErrValidationFailed is returned when a constructed event is missing
	// required fields. The concrete error is a *ValidationError wrapping it.
	ErrValidationFailed = errors.New("eventlog: event validation failed")
)

// Problem describes a single structural defect found in an event
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Field, p.Message)
}

// ValidationError lists the specific missing or invalid fields of an event
type ValidationError struct {
	EventID  string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("eventlog: event validation failed: %s", strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is(err, ErrValidationFailed) match
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
