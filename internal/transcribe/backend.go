package transcribe

import "context"

// Backend turns one audio file into text.
type Backend interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context, audioPath string) (string, error)

func (f BackendFunc) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f(ctx, audioPath)
}
