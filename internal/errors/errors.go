package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable code clients branch on.
type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"

	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Widget visitors see these two and restart the flow.
	ErrCodeSessionExpired       ErrorCode = "SESSION_EXPIRED"
	ErrCodeConversationResolved ErrorCode = "CONVERSATION_RESOLVED"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var codeStatus = map[ErrorCode]int{
	ErrCodeUnauthorized:         http.StatusUnauthorized,
	ErrCodeInvalidToken:         http.StatusUnauthorized,
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeSessionExpired:       http.StatusGone,
	ErrCodeConversationResolved: http.StatusConflict,
	ErrCodeRateLimitExceeded:    http.StatusTooManyRequests,
	ErrCodeExternal:             http.StatusBadGateway,
}

// Status is the HTTP status for the code. Unknown codes are 500.
func (c ErrorCode) Status() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Internal reports whether the code hides a server-side fault that should
// be logged rather than explained to the client.
func (c ErrorCode) Internal() bool {
	return c.Status() >= http.StatusInternalServerError && c != ErrCodeExternal
}

// AppError is an error with a client-facing code and message.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	// RetryAfter is set on rate limit failures, in whole seconds.
	RetryAfter int `json:"-"`
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap keeps cause for logs. Only message reaches the client.
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message)
}

func PayloadTooLarge(limit int64) *AppError {
	return &AppError{
		Code:    ErrCodePayloadTooLarge,
		Message: "Request body too large",
		Details: map[string]int64{"maxBytes": limit},
	}
}

func SessionExpired() *AppError {
	return New(ErrCodeSessionExpired, "Contact session expired")
}

func ConversationResolved() *AppError {
	return New(ErrCodeConversationResolved, "Conversation resolved")
}

// RateLimitExceeded builds a rate limit failure. An empty message falls back
// to a generic text that includes the wait time.
func RateLimitExceeded(message string, retryAfterSeconds int) *AppError {
	if message == "" {
		message = fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", retryAfterSeconds)
	}
	return &AppError{
		Code:       ErrCodeRateLimitExceeded,
		Message:    message,
		Details:    map[string]int{"retryAfter": retryAfterSeconds},
		RetryAfter: retryAfterSeconds,
	}
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns err's code, or ErrCodeInternal for errors without one.
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
