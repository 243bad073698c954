package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrProtected indicates a delete refused because other records still reference the target.
	ErrProtected = errors.New("protected by referencing records")
	// ErrBatchInvalid indicates a line item batch that failed validation as a whole.
	ErrBatchInvalid = errors.New("batch validation failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for field. The first message recorded for a field wins.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// Empty reports whether no field messages were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns e as an error, or nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	return "validation failed: " + joinFields(e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ReferentialIntegrityError reports a delete blocked by a protect rule.
type ReferentialIntegrityError struct {
	Entity       string
	ID           int64
	ReferencedBy string
	Count        int
}

func (e *ReferentialIntegrityError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("cannot delete %s: referenced by %d %s record(s)", e.Entity, e.Count, e.ReferencedBy)
	}
	return fmt.Sprintf("cannot delete %s %d: referenced by %d %s record(s)", e.Entity, e.ID, e.Count, e.ReferencedBy)
}

func (e *ReferentialIntegrityError) Unwrap() error { return ErrProtected }

// DirectiveError lists the field messages of one rejected batch directive.
type DirectiveError struct {
	Index  int               `json:"index"`
	Fields map[string]string `json:"errors"`
}

// BatchValidationError aggregates every failing directive of a batch.
type BatchValidationError struct {
	Errors []DirectiveError
}

func (e *BatchValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		parts = append(parts, fmt.Sprintf("#%d (%s)", d.Index, joinFields(d.Fields)))
	}
	return "batch validation failed: " + strings.Join(parts, "; ")
}

func (e *BatchValidationError) Unwrap() error { return ErrBatchInvalid }

// UserSafeMessage converts an error into text suitable for flash messages and form banners.
func UserSafeMessage(err error) string {
	var (
		validation *ValidationError
		protected  *ReferentialIntegrityError
		notFound   *NotFoundError
		batch      *BatchValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &protected):
		return fmt.Sprintf("This %s cannot be deleted because %d %s record(s) still reference it.",
			protected.Entity, protected.Count, strings.ReplaceAll(protected.ReferencedBy, "_", " "))
	case errors.As(err, &notFound):
		return fmt.Sprintf("The requested %s no longer exists.", notFound.Entity)
	case errors.As(err, &validation):
		return "Please correct the errors below."
	case errors.As(err, &batch):
		return "Please correct the errors in the line items below."
	default:
		return "Something went wrong. Please try again."
	}
}

func joinFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, ", ")
}
