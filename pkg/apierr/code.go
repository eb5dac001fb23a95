package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Project errors.
const (
	CodeProjectNotFound Code = "PROJECT_NOT_FOUND"
)

// File errors.
const (
	CodePathRequired  Code = "PATH_REQUIRED"
	CodeInvalidPath   Code = "INVALID_PATH"
	CodeFileNotFound  Code = "FILE_NOT_FOUND"
	CodeNoDiagnostics Code = "NO_DIAGNOSTICS"
)

// Validation and completion errors.
const (
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeValidationCancelled Code = "VALIDATION_CANCELLED"
	CodeInvalidOffset       Code = "INVALID_OFFSET"
	CodeCompletionFailed    Code = "COMPLETION_FAILED"
	CodeNameRequired        Code = "NAME_REQUIRED"
)

// Change event errors.
const (
	CodeEmptyBatch    Code = "EMPTY_BATCH"
	CodeInvalidRecord Code = "INVALID_RECORD"
	CodeEventsFailed  Code = "EVENTS_FAILED"
	CodePublishFailed Code = "PUBLISH_FAILED"
)
