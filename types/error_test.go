package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      NewError(ErrAssetNotFound, "asset missing"),
			expected: "[ASSET_NOT_FOUND] asset missing",
		},
		{
			name:     "with cause",
			err:      NewError(ErrArchiveCorrupt, "bad zip").WithCause(errors.New("unexpected EOF")),
			expected: "[ARCHIVE_CORRUPT] bad zip: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("network down")
	err := NewError(ErrUpstreamError, "marketplace unreachable").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), cause)
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrThrottled, "rate limited").
		WithHTTPStatus(429).
		WithRetryable(true).
		WithOrigin("sketchfab:abc123")

	assert.Equal(t, ErrThrottled, err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
	assert.True(t, err.Retryable)
	assert.Equal(t, "sketchfab:abc123", err.Origin)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(ErrThrottled, "x").WithRetryable(true)))
	assert.False(t, IsRetryable(NewError(ErrHostNotAllowed, "x")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrArchiveTooLarge, GetErrorCode(NewError(ErrArchiveTooLarge, "x")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
