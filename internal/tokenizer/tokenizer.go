package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports how many model tokens a text occupies.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int {
	return f(text)
}

// Tiktoken counts tokens with a BPE encoding such as o200k_base. The encoding
// tables are loaded on first use.
type Tiktoken struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTiktoken(encoding string) *Tiktoken {
	return &Tiktoken{encoding: encoding}
}

// Load resolves the encoding. Calling it at startup surfaces a bad encoding
// name before any job is processed.
func (t *Tiktoken) Load() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.err = fmt.Errorf("load tiktoken encoding %q: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.err
}

// Count returns 0 for empty text or when the encoding could not be loaded.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	if err := t.Load(); err != nil {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}
