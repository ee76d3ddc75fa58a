// Package forge wraps the GitHub REST API client with the operations
// forgepush needs: ensuring the target repository exists and writing
// file contents into it.
package forge

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v55/github"
)

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, forge.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("forge: bad request")
	ErrUnauthorized = errors.New("forge: unauthorized")
	ErrForbidden    = errors.New("forge: forbidden")
	ErrNotFound     = errors.New("forge: not found")
	ErrConflict     = errors.New("forge: conflict")
	ErrValidation   = errors.New("forge: validation failed")
	ErrRateLimited  = errors.New("forge: rate limited")
	ErrServerError  = errors.New("forge: server error")
)

// Sentinel errors for the name-collision fallback of EnsureRepository.
var (
	ErrRepositoryNotFound = errors.New("forge: repository name is taken but the repository is not visible")
	ErrNotOwner           = errors.New("forge: existing repository belongs to another owner")
	ErrNoPushAccess       = errors.New("forge: no push access to existing repository")
)

// requestIDHeader carries GitHub's per-request identifier.
const requestIDHeader = "X-GitHub-Request-Id"

// APIError wraps a sentinel error with the HTTP status code, request ID,
// and the API error message.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("forge: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("forge: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes with no dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// wrapError converts go-github errors into *APIError. Transport errors and
// anything without an HTTP response pass through unchanged.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return newAPIError(rateErr.Response, rateErr.Message, ErrRateLimited)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return newAPIError(abuseErr.Response, abuseErr.Message, ErrRateLimited)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return newAPIError(respErr.Response, errorMessage(respErr), classifyStatus(respErr.Response.StatusCode))
	}

	return err
}

func newAPIError(resp *http.Response, message string, sentinel error) *APIError {
	apiErr := &APIError{Message: message, Err: sentinel}

	if resp != nil {
		apiErr.StatusCode = resp.StatusCode
		apiErr.RequestID = resp.Header.Get(requestIDHeader)
	}

	return apiErr
}

// errorMessage joins the top-level message with any field-level messages.
func errorMessage(e *github.ErrorResponse) string {
	msg := e.Message

	for _, fe := range e.Errors {
		detail := fe.Message
		if detail == "" {
			detail = fmt.Sprintf("%s %s %s", fe.Resource, fe.Field, fe.Code)
		}

		msg += "; " + detail
	}

	return msg
}
