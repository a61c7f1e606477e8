package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeStorage, "save failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAsAppError(t *testing.T) {
	appErr, ok := AsAppError(NewUserNotFoundError(42))
	require.True(t, ok)
	assert.Equal(t, ErrCodeUserNotFound, appErr.Code)
	assert.Equal(t, int64(42), appErr.Details["user_id"])

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)

	_, ok = AsAppError(nil)
	assert.False(t, ok)
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	inner := NewLimitExhaustedError(0)
	wrapped := fmt.Errorf("pipeline: %w", inner)

	// Plain type assertion does not see through fmt wrapping; callers
	// pass AppErrors around directly.
	_, ok := AsAppError(wrapped)
	assert.False(t, ok)

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrCodeLimitExhausted, appErr.Code)
}

func TestClassifiers(t *testing.T) {
	assert.True(t, NewUserNotFoundError(1).IsNotFound())
	assert.True(t, NewItemNotFoundError(1).IsNotFound())
	assert.True(t, NewValidationError("name", "empty").IsValidation())
	assert.True(t, NewForbiddenError("nope").IsPolicyDenied())
	assert.True(t, NewNeedsAuthError().IsPolicyDenied())
	assert.False(t, NewStorageError("save", errors.New("x")).IsNotFound())
}

func TestCooldownErrorDetails(t *testing.T) {
	err := NewCooldownError("gacha", 12)
	assert.Equal(t, ErrCodeCooldown, err.Code)
	assert.Equal(t, "gacha", err.Details["action"])
	assert.Equal(t, 12, err.Details["retry_after_sec"])
}

func TestWithUserID(t *testing.T) {
	err := New(ErrCodeInternal, "boom").WithUserID(7)
	assert.Equal(t, int64(7), err.UserID)
}
