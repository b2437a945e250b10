package errors

import "net/http"

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}

// Stint lifecycle errors. Every precondition violation is detected inside the
// transition transaction and mapped to exactly one of these codes, so callers
// never have to re-derive the reason from a generic failure.

func InvalidDuration(message string) *APIError {
	return BadRequest("invalid_duration", message)
}

func ProjectNotFound() *APIError {
	return NotFound("project_not_found", "project not found")
}

func ProjectArchived() *APIError {
	return BadRequest("project_archived", "project is archived")
}

func NotActive() *APIError {
	return BadRequest("not_active", "stint is not active")
}

func NotPaused() *APIError {
	return BadRequest("not_paused", "stint is not paused")
}

func NotActiveOrPaused() *APIError {
	return BadRequest("not_active_or_paused", "stint is already completed or interrupted")
}

func AlreadyHasPaused() *APIError {
	return BadRequest("already_has_paused", "another paused stint exists")
}

func AnotherStintActive() *APIError {
	return BadRequest("another_stint_active", "another stint is currently active")
}

// StintConflict is returned when a start attempt loses to an existing stint.
// Details carry the blocking stint so the caller can offer a resolution UI
// instead of retrying blindly.
func StintConflict(message string, details interface{}) *APIError {
	return Conflict("stint_conflict", message, details)
}
