package custom_errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobError_ErrorMessage(t *testing.T) {
	err := NewJobError(KindAssetNotFound, "Asset a-1 not found", nil)
	assert.Equal(t, "Asset a-1 not found", err.Error())

	wrapped := NewJobError(KindTranscodeFailure, "ffmpeg conversion failed", errors.New("exit status 1"))
	assert.Equal(t, "ffmpeg conversion failed: exit status 1", wrapped.Error())
}

func TestJobError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", NewJobError(KindChunkSizeExceeded, "chunk too big", nil))

	assert.True(t, errors.Is(err, ErrChunkSizeExceeded))
	assert.False(t, errors.Is(err, ErrAssetNotFound))
}

func TestAsJobError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsJobError(nil))
	})

	t.Run("keeps existing tag", func(t *testing.T) {
		original := NewJobError(KindUnsupportedContentType, "Unsupported content type: pdf", nil)
		got := AsJobError(fmt.Errorf("wrapped: %w", original))
		require.NotNil(t, got)
		assert.Same(t, original, got)
	})

	t.Run("maps sentinel", func(t *testing.T) {
		got := AsJobError(fmt.Errorf("chunk 2: %w", ErrTranscriptionFailure))
		require.NotNil(t, got)
		assert.Equal(t, KindTranscriptionFailure, got.Kind)
	})

	t.Run("falls back to internal", func(t *testing.T) {
		got := AsJobError(errors.New("boom"))
		require.NotNil(t, got)
		assert.Equal(t, KindInternal, got.Kind)
		assert.Equal(t, "boom", got.Message)
	})
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.False(t, v.HasError())
	assert.Equal(t, "", v.Error())

	first := errors.New("worker count must be positive")
	v.Add(first)
	v.Add(errors.New("api key is required"))

	assert.True(t, v.HasError())
	assert.Contains(t, v.Error(), "worker count must be positive")
	assert.Contains(t, v.Error(), "api key is required")
	assert.True(t, errors.Is(v, first))
}
