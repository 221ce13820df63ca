package models

import (
	"assetprocessor/internal/custom_errors"
	"assetprocessor/internal/state"
)

// JobResult is what the pipeline hands back to the worker. Status is either
// completed or failed; Err is set only for failed results.
type JobResult struct {
	JobID      string
	RunID      string
	AssetID    string
	FileType   FileType
	Status     state.JobStatus
	Content    string
	TokenCount int
	ChunkCount int
	Err        *custom_errors.JobError
}

func Succeeded(jobID, content string, tokenCount, chunkCount int) JobResult {
	return JobResult{
		JobID:      jobID,
		Status:     state.StatusCompleted,
		Content:    content,
		TokenCount: tokenCount,
		ChunkCount: chunkCount,
	}
}

func Failed(jobID string, err error) JobResult {
	return JobResult{
		JobID:  jobID,
		Status: state.StatusFailed,
		Err:    custom_errors.AsJobError(err),
	}
}

func (r JobResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
