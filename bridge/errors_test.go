package bridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := NewNativeError("execution failed", cause)

	assert.Equal(t, "execution failed: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsType(ErrorTypeNative))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, ErrorTypeNative, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(cause))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))
}

func TestErrorTypeNames(t *testing.T) {
	assert.Equal(t, "unknown", ErrorTypeUnknown.String())
	assert.Equal(t, "provider_not_found", ErrorTypeProviderNotFound.String())
	assert.Equal(t, "invalid_handle", ErrorTypeInvalidHandle.String())
	assert.Equal(t, "native", ErrorTypeNative.String())

	assert.Equal(t, "invalid transaction handle: abc", NewInvalidHandleError("abc", nil).Error())
	assert.Equal(t, "failed to load provider pg", NewProviderNotFoundError("pg").Error())
}
