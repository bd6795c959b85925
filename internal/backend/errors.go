package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors matched against *APIError with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorised")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// maxErrorBody bounds how much of a non-JSON error body is kept.
const maxErrorBody = 512

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *APIError) Error() string {
	switch {
	case e.Message != "" && e.Code != "":
		return fmt.Sprintf("backend: %d %s: %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("backend: %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("backend: %d %s", e.Status, http.StatusText(e.Status))
	}
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// parseAPIError builds an APIError from a response body. It understands the
// {status, code, message} envelope and the Spring {status, error, message}
// shape, and falls back to the raw text.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Code    string `json:"code"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Code
		if apiErr.Code == "" {
			apiErr.Code = envelope.Error
		}
		apiErr.Message = envelope.Message
		return apiErr
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	apiErr.Message = text
	return apiErr
}
