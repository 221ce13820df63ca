package custom_errors

import (
	"errors"
	"fmt"
)

// Kind tags a job failure so workers can map it to a status patch without
// inspecting arbitrary runtime errors.
type Kind string

const (
	KindTransientFetch         Kind = "transient_fetch"
	KindAssetNotFound          Kind = "asset_not_found"
	KindUnsupportedContentType Kind = "unsupported_content_type"
	KindChunkSizeExceeded      Kind = "chunk_size_exceeded"
	KindTranscriptionFailure   Kind = "transcription_failure"
	KindTranscodeFailure       Kind = "transcode_failure"
	KindStoreUpdateFailure     Kind = "store_update_failure"
	KindInternal               Kind = "internal"
)

var (
	ErrTransientFetch         = errors.New("transient fetch error")
	ErrAssetNotFound          = errors.New("asset not found")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrChunkSizeExceeded      = errors.New("chunk size exceeds the maximum size after splitting")
	ErrTranscriptionFailure   = errors.New("transcription failed")
	ErrTranscodeFailure       = errors.New("transcoding failed")
	ErrStoreUpdateFailure     = errors.New("store update failed")
)

var sentinels = map[Kind]error{
	KindTransientFetch:         ErrTransientFetch,
	KindAssetNotFound:          ErrAssetNotFound,
	KindUnsupportedContentType: ErrUnsupportedContentType,
	KindChunkSizeExceeded:      ErrChunkSizeExceeded,
	KindTranscriptionFailure:   ErrTranscriptionFailure,
	KindTranscodeFailure:       ErrTranscodeFailure,
	KindStoreUpdateFailure:     ErrStoreUpdateFailure,
}

// JobError is the tagged failure produced by the job pipeline. Message is what
// ends up in the job's errorMessage field.
type JobError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func NewJobError(kind Kind, message string, err error) *JobError {
	return &JobError{Kind: kind, Message: message, Err: err}
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil || e.Err.Error() == e.Message {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel error of the same kind.
func (e *JobError) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

// AsJobError converts any error into a JobError, keeping an existing tag if
// one is present anywhere in the chain.
func AsJobError(err error) *JobError {
	if err == nil {
		return nil
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return NewJobError(kind, err.Error(), err)
		}
	}
	return NewJobError(KindInternal, err.Error(), err)
}
