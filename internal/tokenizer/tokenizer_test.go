package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterFunc(t *testing.T) {
	var c Counter = CounterFunc(func(text string) int { return len(text) })
	assert.Equal(t, 5, c.Count("hello"))
}

func TestTiktoken_EmptyText(t *testing.T) {
	// No encoding load is needed for empty input.
	assert.Equal(t, 0, NewTiktoken("does-not-exist").Count(""))
}

func TestTiktoken_UnknownEncoding(t *testing.T) {
	tk := NewTiktoken("does-not-exist")
	err := tk.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
	assert.Equal(t, 0, tk.Count("hello world"))
	assert.Equal(t, err, tk.Load(), "load result is cached")
}
