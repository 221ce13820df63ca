package models

import (
	"time"

	"assetprocessor/internal/state"
)

// Attempt is one ledger row: a single worker run of a job.
type Attempt struct {
	RunID        string
	JobID        string
	AssetID      string
	FileType     FileType
	Status       state.JobStatus
	FailureKind  string
	ErrorMessage string
	ChunkCount   int
	TokenCount   int
	Attempt      int
	WorkerID     int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// AttemptFromResult builds the ledger row for a finished run.
func AttemptFromResult(job Job, result JobResult, workerID int, startedAt, finishedAt time.Time) Attempt {
	a := Attempt{
		RunID:      result.RunID,
		JobID:      job.ID,
		AssetID:    job.AssetID,
		FileType:   result.FileType,
		Status:     result.Status,
		ChunkCount: result.ChunkCount,
		TokenCount: result.TokenCount,
		Attempt:    job.Attempts + 1,
		WorkerID:   workerID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if result.Err != nil {
		a.FailureKind = string(result.Err.Kind)
		a.ErrorMessage = result.ErrorMessage()
	}
	return a
}
