package apiclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"assetprocessor/internal/custom_errors"
)

// StatusError reports a non-2xx answer from the store.
type StatusError struct {
	StatusCode int
	Body       string
}

func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Is treats server-side and throttling answers as transient.
func (e *StatusError) Is(target error) bool {
	if target != custom_errors.ErrTransientFetch {
		return false
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func asStatusError(err error, target **StatusError) bool {
	return errors.As(err, target)
}
