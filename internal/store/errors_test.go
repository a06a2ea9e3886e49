package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			expected: false,
		},
		{
			name:     "ErrNotFound",
			err:      ErrNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrTaskNotFound",
			err:      fmt.Errorf("failed to find task: %w", ErrTaskNotFound),
			expected: true,
		},
		{
			name:     "ErrJobNotFound",
			err:      ErrJobNotFound,
			expected: true,
		},
		{
			name:     "related entity missing is not a not-found",
			err:      ErrRelatedEntityNotFound,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestRelatedEntityNotFoundIsInvalidEntity(t *testing.T) {
	assert.ErrorIs(t, ErrRelatedEntityNotFound, ErrInvalidEntity)
	assert.False(t, IsDuplicateError(ErrRelatedEntityNotFound))
	assert.True(t, IsDuplicateError(fmt.Errorf("x: %w", ErrDuplicate)))
}
