package apierr

import (
	"fmt"
	"net/http"
)

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Project ---

func ProjectNotFound(key string) *Error {
	return New(CodeProjectNotFound, http.StatusNotFound, fmt.Sprintf("project %q is not in the workspace", key)).
		With("project", key)
}

// --- File ---

func PathRequired() *Error {
	return New(CodePathRequired, http.StatusBadRequest, "path is required")
}

func InvalidPath() *Error {
	return New(CodeInvalidPath, http.StatusBadRequest, "path must be relative to the project root")
}

func FileNotFound(path string) *Error {
	return New(CodeFileNotFound, http.StatusNotFound, "file not found").With("path", path)
}

// NoDiagnostics reports a file that was never validated.
func NoDiagnostics(path string) *Error {
	return New(CodeNoDiagnostics, http.StatusNotFound, "no diagnostics stored for file; validate it first").
		With("path", path)
}

// --- Validation & completion ---

func ValidationFailed(cause error) *Error {
	return Wrap(CodeValidationFailed, http.StatusInternalServerError, "Validation failed", cause)
}

func ValidationCancelled() *Error {
	return New(CodeValidationCancelled, http.StatusServiceUnavailable, "Validation was cancelled")
}

func InvalidOffset(offset int) *Error {
	return New(CodeInvalidOffset, http.StatusBadRequest, fmt.Sprintf("offset %d is outside the file", offset)).
		With("offset", offset)
}

func CompletionFailed(cause error) *Error {
	return Wrap(CodeCompletionFailed, http.StatusInternalServerError, "Completion failed", cause)
}

func NameRequired() *Error {
	return New(CodeNameRequired, http.StatusBadRequest, "name is required")
}

// --- Change events ---

func EmptyBatch() *Error {
	return New(CodeEmptyBatch, http.StatusBadRequest, "batch has no records and no clean build")
}

func InvalidRecord(i int, reason string) *Error {
	return New(CodeInvalidRecord, http.StatusBadRequest, fmt.Sprintf("record %d: %s", i, reason)).
		With("record", i)
}

func EventsFailed(cause error) *Error {
	return Wrap(CodeEventsFailed, http.StatusInternalServerError, "Failed to apply change batch", cause)
}

func PublishFailed(cause error) *Error {
	return Wrap(CodePublishFailed, http.StatusBadGateway, "Failed to publish change batch", cause)
}
