package errors

import (
	"fmt"
	"time"
)

// ErrorCode identifies a class of engine error.
type ErrorCode string

const (
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"

	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"
	ErrCodeItemNotFound ErrorCode = "ITEM_NOT_FOUND"

	// Policy denials. NEEDS_AUTH is distinct from FORBIDDEN so the
	// transport layer can render an authentication prompt instead of a
	// plain rejection.
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeNeedsAuth      ErrorCode = "NEEDS_AUTH"
	ErrCodeLimitExhausted ErrorCode = "LIMIT_EXHAUSTED"
	ErrCodeCooldown       ErrorCode = "COOLDOWN_ACTIVE"

	ErrCodeStorage     ErrorCode = "STORAGE_ERROR"
	ErrCodeTelegramAPI ErrorCode = "TELEGRAM_API_ERROR"
)

// AppError is the typed error carried through the engine.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether the error targets a missing user/item/record.
func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound ||
		e.Code == ErrCodeUserNotFound ||
		e.Code == ErrCodeItemNotFound
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation
}

// IsPolicyDenied reports whether the request was well-formed but rejected
// by access, quota or cooldown policy.
func (e *AppError) IsPolicyDenied() bool {
	return e.Code == ErrCodeForbidden ||
		e.Code == ErrCodeNeedsAuth ||
		e.Code == ErrCodeLimitExhausted ||
		e.Code == ErrCodeCooldown
}

// WithDetail attaches structured detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithUserID tags the error with the acting principal.
func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap attaches a cause to a new application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Constructors for the common cases.

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewUserNotFoundError(userID int64) *AppError {
	return New(ErrCodeUserNotFound, fmt.Sprintf("User not found: %d", userID)).
		WithDetail("user_id", userID)
}

func NewItemNotFoundError(itemID int) *AppError {
	return New(ErrCodeItemNotFound, fmt.Sprintf("Item not found: %d", itemID)).
		WithDetail("item_id", itemID)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewNeedsAuthError() *AppError {
	return New(ErrCodeNeedsAuth, "Private mode is enabled, authentication required")
}

func NewLimitExhaustedError(available int) *AppError {
	return New(ErrCodeLimitExhausted, "Gacha limit exhausted").
		WithDetail("available", available)
}

func NewCooldownError(action string, retryAfterSec int) *AppError {
	return New(ErrCodeCooldown, fmt.Sprintf("Cooldown active for %s", action)).
		WithDetail("action", action).
		WithDetail("retry_after_sec", retryAfterSec)
}

func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("Storage operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewTelegramAPIError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTelegramAPI, fmt.Sprintf("Telegram API operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError casts err to AppError when possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil {
		appErr, _ = err.(*AppError)
	}
	return appErr, appErr != nil
}
