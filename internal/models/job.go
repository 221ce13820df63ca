package models

import (
	"time"

	"assetprocessor/internal/state"
)

// Job mirrors one asset processing job as the remote store reports it.
type Job struct {
	ID            string          `json:"id"`
	AssetID       string          `json:"assetId"`
	Status        state.JobStatus `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	LastHeartbeat time.Time       `json:"lastHeartBeat"`
	ErrorMessage  *string         `json:"errorMessage,omitempty"`
}

// JobPatch is a partial job update. Nil fields are left untouched by the store.
type JobPatch struct {
	Status        *state.JobStatus `json:"status,omitempty"`
	ErrorMessage  *string          `json:"errorMessage,omitempty"`
	Attempts      *int             `json:"attempts,omitempty"`
	LastHeartbeat *time.Time       `json:"lastHeartBeat,omitempty"`
}

func StatusPatch(status state.JobStatus) JobPatch {
	return JobPatch{Status: &status}
}

// FailurePatch moves a job to failed and bumps its attempt counter.
func FailurePatch(job Job, message string) JobPatch {
	status := state.StatusFailed
	attempts := job.Attempts + 1
	return JobPatch{
		Status:       &status,
		ErrorMessage: &message,
		Attempts:     &attempts,
	}
}

func MaxAttemptsPatch(message string) JobPatch {
	status := state.StatusMaxAttemptsExceeded
	return JobPatch{
		Status:       &status,
		ErrorMessage: &message,
	}
}

func HeartbeatPatch(at time.Time) JobPatch {
	return JobPatch{LastHeartbeat: &at}
}
