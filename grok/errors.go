package grok

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrMissingAPIKey indicates a network operation was attempted without credentials.
var ErrMissingAPIKey = errors.New("API key must be set before making requests")

// ErrNoChoices indicates a successful completion body without a usable choices array.
var ErrNoChoices = errors.New("response did not include choices")

const unknownAPIError = "Unknown API error"

// APIError is a failure reported by the provider after the exchange completed.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       any
	Err        error
}

func (e *APIError) Error() string {
	return "Grok API error: " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// TransportError indicates the exchange could not complete and produced no
// response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP request failed: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type apiErrorResponse struct {
	Error *apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    unknownAPIError,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		apiErr.Err = fmt.Errorf("read error body: %w", err)
		return apiErr
	}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Type = parsed.Error.Type
		apiErr.Code = parsed.Error.Code
	}
	return apiErr
}
