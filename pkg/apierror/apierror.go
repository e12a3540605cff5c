package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeDuplicateEmail        = "DUPLICATE_EMAIL"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodePathTraversal         = "PATH_TRAVERSAL"
	CodePayloadTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeUnavailable           = "SERVICE_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status returns the coarse classification reported to clients next to the code.
func (e *APIError) Status() string {
	if e == nil {
		return ""
	}
	return Classify(e.HTTPStatus)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Validation(message string, details string) *APIError {
	return New(CodeValidation, message, details, http.StatusBadRequest)
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func Unavailable(message string) *APIError {
	return New(CodeUnavailable, message, "", http.StatusServiceUnavailable)
}

// Classify maps an HTTP status to the status classification used in error envelopes.
func Classify(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "unauthorized"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status >= 400 && status < 500:
		return "validation"
	default:
		return "server_error"
	}
}

// HasCode reports whether err wraps an APIError carrying code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
