package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeRuntime, "connection failed"),
			expected: "[RUNTIME_ERROR] connection failed",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeFormat, "bad header", errors.New("short read")),
			expected: "[FORMAT_ERROR] bad header: short read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeConsistency, "invariant violated", underlying)

	unwrapped := err.Unwrap()
	assert.Equal(t, underlying, unwrapped)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeRuntime, "error 1")
	err2 := New(CodeRuntime, "error 2")
	err3 := New(CodeFormat, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsDatabaseError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "database error",
			err:      ErrDatabaseError,
			expected: true,
		},
		{
			name:     "wrapped database error",
			err:      Wrap(CodeRuntime, "db error", errors.New("connection refused")),
			expected: false,
		},
		{
			name:     "other error",
			err:      ErrUploadError,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDatabaseError(tt.err))
		})
	}
}

func TestErrorKindPredicates(t *testing.T) {
	assert.True(t, IsConfigurationError(ErrInvalidColumnCount))
	assert.True(t, IsFormatError(ErrBadMagic))
	assert.True(t, IsResourceError(ErrMergeCapacityExceeded))
	assert.True(t, IsConsistencyError(ErrClusterIDOutOfRange))
	assert.True(t, IsRuntimeError(ErrWorkerAssignmentFailed))

	assert.False(t, IsFormatError(ErrInvalidColumnCount))
	assert.False(t, IsConfigurationError(nil))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      New(CodeFormat, "bad header"),
			expected: CodeFormat,
		},
		{
			name:     "wrapped app error",
			err:      Wrap(CodeResource, "capacity", errors.New("inner")),
			expected: CodeResource,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: CodeUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      New(CodeRuntime, "db connection failed"),
			expected: "db connection failed",
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: "standard error",
		},
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorMessage(tt.err))
		})
	}
}
