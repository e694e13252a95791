package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesOnCode(t *testing.T) {
	wrapped := fmt.Errorf("respond: %w", WithMeta(ErrInvalidTransition, map[string]any{"request": "x"}))

	assert.True(t, errors.Is(wrapped, ErrInvalidTransition))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
}

func TestAppError_ErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "plain",
			err:  New(CodeForbidden, "nope"),
			want: "FORBIDDEN: nope",
		},
		{
			name: "wrapped",
			err:  Wrap(errors.New("conn reset"), CodeInternal, "failed to load request"),
			want: "INTERNAL_ERROR: failed to load request (conn reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWithMeta_DoesNotMutateSentinel(t *testing.T) {
	err := WithMeta(ErrQuotaExceeded, map[string]any{"remainingRequests": 0})

	assert.Equal(t, 0, err.Meta["remainingRequests"])
	assert.Nil(t, ErrQuotaExceeded.Meta)
	assert.Equal(t, ErrQuotaExceeded.Message, err.Message)
}

func TestAs(t *testing.T) {
	appErr, ok := As(fmt.Errorf("outer: %w", ErrForbidden))
	assert.True(t, ok)
	assert.Equal(t, CodeForbidden, appErr.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
