package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := New(KindSourceUnavailable, "extract", "manual/a.pdf", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.False(t, errors.Is(err, ErrNoExtractableText))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "wrapped cause should stay reachable")
}

func TestError_Message(t *testing.T) {
	err := New(KindNoExtractableText, "extract", "b.pdf", nil)
	assert.Equal(t, "extract: no extractable text (section b.pdf)", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"typed", New(KindCancelled, "", "", nil), KindCancelled},
		{"wrapped typed", fmt.Errorf("outer: %w", New(KindCacheWriteFailed, "", "", nil)), KindCacheWriteFailed},
		{"bare sentinel", fmt.Errorf("x: %w", ErrInvalidPageCoordinate), KindInvalidPageCoordinate},
		{"unknown", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryableAndSilent(t *testing.T) {
	assert.True(t, Retryable(KindSourceUnavailable))
	assert.True(t, Retryable(KindCacheWriteFailed))
	assert.False(t, Retryable(KindNoExtractableText))
	assert.False(t, Retryable(KindCancelled))
	assert.True(t, Silent(KindCancelled))
	assert.False(t, Silent(KindCacheWriteFailed))
	assert.False(t, Silent(KindNoExtractableText))
}
