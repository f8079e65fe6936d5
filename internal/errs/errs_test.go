package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDuplicateErrorsWrapBase(t *testing.T) {
	for _, err := range []error{ErrDuplicateEmail, ErrDuplicateUsername, ErrDuplicateName} {
		assert.True(t, errors.Is(err, ErrDuplicate), err.Error())
	}
	assert.False(t, errors.Is(ErrDuplicateEmail, ErrDuplicateUsername))
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"username": "too short",
		"email":    "invalid",
	}}
	assert.Equal(t, "validation failed: email: invalid; username: too short", err.Error())

	wrapped := fmt.Errorf("register: %w", err)
	ve, ok := IsValidation(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "too short", ve.Fields["username"])

	_, ok = IsValidation(ErrNotFound)
	assert.False(t, ok)
}
