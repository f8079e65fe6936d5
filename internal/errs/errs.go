// Package errs holds the error taxonomy shared by the services and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrDuplicate         = errors.New("already exists")
	ErrQuotaExceeded     = errors.New("borrowing limit reached")
	ErrInvalidTransition = errors.New("invalid lending transition")
	ErrBookUnavailable   = errors.New("book is held by another reader")

	ErrDuplicateEmail    = fmt.Errorf("email %w", ErrDuplicate)
	ErrDuplicateUsername = fmt.Errorf("username %w", ErrDuplicate)
	ErrDuplicateName     = fmt.Errorf("name %w", ErrDuplicate)

	ErrNoSuchUser        = errors.New("no user with that email")
	ErrIncorrectPassword = errors.New("incorrect password")
)

// ValidationError carries per-field messages for form input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation unwraps err into a ValidationError when it is one.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
