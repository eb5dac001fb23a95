package apierr

import (
	"fmt"
	"maps"
)

// Error is an API failure: a stable code, a message for the client, the
// HTTP status, optional structured details (project, path, offset...) and an
// optional cause that is logged but never sent.
type Error struct {
	code    Code
	message string
	status  int
	details map[string]any
	cause   error
}

func New(code Code, status int, message string) *Error {
	return &Error{code: code, message: message, status: status}
}

func Wrap(code Code, status int, message string, cause error) *Error {
	return &Error{code: code, message: message, status: status, cause: cause}
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key string, value any) *Error {
	c := *e
	c.details = maps.Clone(e.details)
	if c.details == nil {
		c.details = map[string]any{}
	}
	c.details[key] = value
	return &c
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code, so callers can test
// errors.Is(err, apierr.ProjectNotFound("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

func (e *Error) Code() Code              { return e.code }
func (e *Error) Message() string         { return e.message }
func (e *Error) Status() int             { return e.status }
func (e *Error) Details() map[string]any { return e.details }

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: e.code, Message: e.message, Details: e.details}}
}
