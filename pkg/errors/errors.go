// Package errors defines common error types for dclust.
package errors

import (
	"errors"
	"fmt"
)

// Error codes, grouped by the five kinds spec.md assigns to failures.
const (
	CodeUnknown       = "UNKNOWN_ERROR"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeFormat        = "FORMAT_ERROR"
	CodeResource      = "RESOURCE_ERROR"
	CodeConsistency   = "CONSISTENCY_ERROR"
	CodeRuntime       = "RUNTIME_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Sentinel errors for the specific failure modes named in spec.md §7.
var (
	// Configuration: bad CLI flags, bad config file, invalid cutoff sweep
	// parameters.
	ErrInvalidColumnCount = New(CodeConfiguration, "column count is not one of the allowed values")
	ErrInvalidCutoffRange = New(CodeConfiguration, "first_cutoff/last_cutoff/step produce an empty or non-monotonic sweep")
	ErrConfigError        = New(CodeConfiguration, "configuration error")

	// Format: malformed binary input/sidecar files.
	ErrBadMagic        = New(CodeFormat, "unrecognized file magic")
	ErrEndianMismatch  = New(CodeFormat, "file header endianness does not match host")
	ErrTruncatedRecord = New(CodeFormat, "file ended in the middle of a fixed-size record")
	ErrColumnCountOOB  = New(CodeFormat, "column count in file header is out of range")
	ErrParseError      = New(CodeFormat, "parse error")

	// Resource: capacity and scale limits from spec.md §3/§5.
	ErrTooManyEvents         = New(CodeResource, "event count exceeds the maximum supported")
	ErrMergeCapacityExceeded = New(CodeResource, "merge-request set exceeded its capacity for this pass")
	ErrTooManyWorkers        = New(CodeResource, "worker count exceeds the maximum supported")
	ErrTooManyLocalIDs       = New(CodeResource, "worker minted more local cluster ids than its id block allows")
	ErrTooManyCanonicalIDs   = New(CodeResource, "pass produced more canonical clusters than the per-pass maximum")

	// Consistency: invariant violations caught at runtime — a bug, not bad
	// input.
	ErrClusterIDOutOfRange    = New(CodeConsistency, "cluster id is outside the range assigned to its worker")
	ErrNonMonotonicSortKey    = New(CodeConsistency, "point array is not sorted by its declared sort key")
	ErrDanglingMergeReference = New(CodeConsistency, "merge request references a cluster id that was never minted")

	// Runtime: everything else — I/O failures, worker crashes, db errors.
	ErrWorkerAssignmentFailed = New(CodeRuntime, "coordinator could not assign a block pair to any worker")
	ErrDatabaseError          = New(CodeRuntime, "database error")
	ErrUploadError            = New(CodeRuntime, "upload error")
	ErrDownloadError          = New(CodeRuntime, "download error")
	ErrEmptyFile              = New(CodeRuntime, "empty file")
	ErrInvalidInput           = New(CodeRuntime, "invalid input")
	ErrTimeout                = New(CodeRuntime, "operation timeout")
	ErrNotFound               = New(CodeRuntime, "resource not found")
)

// IsConfigurationError reports whether err is a configuration-kind error.
func IsConfigurationError(err error) bool {
	return codeOf(err) == CodeConfiguration
}

// IsFormatError reports whether err is a format-kind error.
func IsFormatError(err error) bool {
	return codeOf(err) == CodeFormat
}

// IsResourceError reports whether err is a resource-kind error.
func IsResourceError(err error) bool {
	return codeOf(err) == CodeResource
}

// IsConsistencyError reports whether err is a consistency-kind error.
func IsConsistencyError(err error) bool {
	return codeOf(err) == CodeConsistency
}

// IsRuntimeError reports whether err is a runtime-kind error.
func IsRuntimeError(err error) bool {
	return codeOf(err) == CodeRuntime
}

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

func codeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	return codeOf(err)
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
