// internal/common/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrCodeBodyTooLarge     ErrorCode = "BODY_TOO_LARGE"

	ErrCodeProviderError   ErrorCode = "PROVIDER_ERROR"
	ErrCodeProviderTimeout ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeChecklistParse  ErrorCode = "CHECKLIST_PARSE_FAILED"

	ErrCodeProcessorError   ErrorCode = "PROCESSOR_ERROR"
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"

	ErrCodeConsultationNotFound ErrorCode = "CONSULTATION_NOT_FOUND"
	ErrCodeStoreFailed          ErrorCode = "STORE_FAILED"
	ErrCodeWebhookRejected      ErrorCode = "WEBHOOK_REJECTED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// --- Request errors ---

// NewValidationError lists every offending field in Details and Metadata["fields"].
func NewValidationError(fieldErrors []string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Request validation failed", strings.Join(fieldErrors, "; "), false, nil)
	e.Metadata = map[string]interface{}{"fields": fieldErrors}
	return e
}

func NewInvalidJSONError(err error) *StandardError {
	return newError(ErrCodeInvalidJSON, "Request body is not valid JSON", err.Error(), false, err)
}

func NewBodyTooLargeError(limit int64) *StandardError {
	e := newError(ErrCodeBodyTooLarge, "Request body too large",
		fmt.Sprintf("request body exceeds the %d byte limit", limit), false, nil)
	e.Metadata = map[string]interface{}{"limitBytes": limit}
	return e
}

// --- Provider errors (recovered by step fallbacks) ---

func NewProviderError(err error) *StandardError {
	return newError(ErrCodeProviderError, "Text generation provider error", err.Error(), true, err)
}

func NewProviderTimeoutError(err error) *StandardError {
	return newError(ErrCodeProviderTimeout, "Text generation provider timeout", err.Error(), true, err)
}

func NewChecklistParseError(err error) *StandardError {
	return newError(ErrCodeChecklistParse, "Generated checklist could not be parsed", err.Error(), false, err)
}

// --- Surfaced errors ---

func NewProcessorError(operation string, err error) *StandardError {
	return newError(ErrCodeProcessorError,
		fmt.Sprintf("Payment %s failed", operation),
		err.Error(), true, err)
}

func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Analysis failed", err.Error(), true, err)
}

func NewConsultationNotFoundError(consultationID string) *StandardError {
	return newError(ErrCodeConsultationNotFound, "Consultation not found",
		fmt.Sprintf("consultationId: %s", consultationID), false, nil)
}

func NewStoreError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreFailed,
		fmt.Sprintf("Consultation store %s failed", operation),
		err.Error(), true, err)
}

func NewWebhookRejectedError(err error) *StandardError {
	return newError(ErrCodeWebhookRejected, "Webhook signature rejected", err.Error(), false, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// AsStandardError unwraps err to the first StandardError in its chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HTTPStatus maps an error code onto the HTTP status returned to clients.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidJSON, ErrCodeWebhookRejected:
		return http.StatusBadRequest
	case ErrCodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeConsultationNotFound:
		return http.StatusNotFound
	case ErrCodeProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "JSON") || strings.Contains(codeStr, "BODY"):
		return "VALIDATION"
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "CHECKLIST") || strings.Contains(codeStr, "GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "PROCESSOR") || strings.Contains(codeStr, "WEBHOOK"):
		return "PAYMENT"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "STORAGE"
	default:
		return "OTHER"
	}
}
