package erp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies ERP API failures.
type ErrorCode string

const (
	// CodeAuthentication means the credentials were rejected or lack permission.
	CodeAuthentication ErrorCode = "authentication"

	// CodeDuplicate means a record with the same name already exists.
	CodeDuplicate ErrorCode = "duplicate"

	// CodeNotFound means the addressed record does not exist.
	CodeNotFound ErrorCode = "not_found"

	// CodeTransport means the request never produced an HTTP response.
	CodeTransport ErrorCode = "transport"

	// CodeUpstream is any other non-2xx response.
	CodeUpstream ErrorCode = "upstream"

	// CodeValidation means the ERP rejected the payload.
	CodeValidation ErrorCode = "validation"
)

// maxMessageLength bounds upstream bodies embedded in error messages.
const maxMessageLength = 512

// APIError is returned for every failed ERP call.
type APIError struct {
	// Code is the stable failure class callers branch on.
	Code ErrorCode

	// ExcType is the ERP exception type, when reported.
	ExcType string

	// Message is the upstream message.
	Message string

	// Status is the HTTP status, or 0 for transport failures.
	Status int

	// err is the underlying transport error, if any.
	err error
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("ERP API error: %s", e.Message)
	}
	return fmt.Sprintf("ERP API error (status %d): %s", e.Status, e.Message)
}

// Unwrap returns the underlying transport error.
func (e *APIError) Unwrap() error {
	return e.err
}

// IsAuthentication reports whether err is an ERP authentication failure.
func IsAuthentication(err error) bool {
	return hasCode(err, CodeAuthentication)
}

// IsDuplicate reports whether err is an ERP duplicate-entry failure.
func IsDuplicate(err error) bool {
	return hasCode(err, CodeDuplicate)
}

// IsNotFound reports whether err is an ERP missing-record failure.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func hasCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// errorBody is the subset of the ERP error document we read.
type errorBody struct {
	ExcType   string `json:"exc_type"`
	Exception string `json:"exception"`
	Message   any    `json:"message"`
}

// newTransportError wraps a failure that produced no HTTP response.
func newTransportError(err error) *APIError {
	return &APIError{
		Code:    CodeTransport,
		Message: err.Error(),
		err:     err,
	}
}

// newStatusError translates a non-2xx response into an APIError.
func newStatusError(status int, body []byte) *APIError {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)

	msg := ""
	if s, ok := parsed.Message.(string); ok {
		msg = s
	}
	if msg == "" {
		msg = parsed.Exception
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength]
	}

	return &APIError{
		Code:    classify(status, parsed.ExcType),
		ExcType: parsed.ExcType,
		Message: msg,
		Status:  status,
	}
}

func classify(status int, excType string) ErrorCode {
	switch excType {
	case "AuthenticationError", "PermissionError", "CSRFTokenError":
		return CodeAuthentication
	case "DoesNotExistError":
		return CodeNotFound
	case "DuplicateEntryError", "UniqueValidationError":
		return CodeDuplicate
	case "ValidationError", "MandatoryError", "LinkValidationError":
		return CodeValidation
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeAuthentication
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeDuplicate
	case http.StatusBadRequest, http.StatusExpectationFailed, http.StatusUnprocessableEntity:
		return CodeValidation
	default:
		return CodeUpstream
	}
}
