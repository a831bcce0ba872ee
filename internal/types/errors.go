package types

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("requested item not found")
var ErrBadRequest = errors.New("bad request")
var ErrUnauthenticated = errors.New("authentication required or invalid credentials")

// FieldViolation is a single validation failure on a named field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every violation found in one validation pass.
// Violations keep their check order; Error flattens them to the newline-joined
// message callers see at the boundary.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	messages := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		messages[i] = v.Message
	}
	return strings.Join(messages, "\n")
}

// Add appends a violation for the given field.
func (e *ValidationError) Add(field, message string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message})
}

// HasViolations reports whether at least one rule failed.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}
