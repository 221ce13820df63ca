package message_broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"assetprocessor/internal/models"
)

// JobOutcomeEvent is published once per finished attempt, after the final
// status has been written to the remote store.
type JobOutcomeEvent struct {
	RunID        string    `json:"runId"`
	JobID        string    `json:"jobId"`
	AssetID      string    `json:"assetId"`
	FileType     string    `json:"fileType,omitempty"`
	Status       string    `json:"status"`
	FailureKind  string    `json:"failureKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempt      int       `json:"attempt"`
	ChunkCount   int       `json:"chunkCount"`
	TokenCount   int       `json:"tokenCount"`
	DurationMs   int64     `json:"durationMs"`
	FinishedAt   time.Time `json:"finishedAt"`
}

func NewJobOutcomeEvent(a models.Attempt) JobOutcomeEvent {
	return JobOutcomeEvent{
		RunID:        a.RunID,
		JobID:        a.JobID,
		AssetID:      a.AssetID,
		FileType:     string(a.FileType),
		Status:       string(a.Status),
		FailureKind:  a.FailureKind,
		ErrorMessage: a.ErrorMessage,
		Attempt:      a.Attempt,
		ChunkCount:   a.ChunkCount,
		TokenCount:   a.TokenCount,
		DurationMs:   a.FinishedAt.Sub(a.StartedAt).Milliseconds(),
		FinishedAt:   a.FinishedAt,
	}
}

// OutcomePublisher serializes attempts as JobOutcomeEvent messages.
type OutcomePublisher struct {
	broker MessageBroker
}

func NewOutcomePublisher(broker MessageBroker) *OutcomePublisher {
	return &OutcomePublisher{broker: broker}
}

func (p *OutcomePublisher) PublishOutcome(ctx context.Context, attempt models.Attempt) error {
	body, err := json.Marshal(NewJobOutcomeEvent(attempt))
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}
	if err := p.broker.Publish(ctx, body); err != nil {
		return fmt.Errorf("publish outcome of job %s: %w", attempt.JobID, err)
	}
	return nil
}

func (p *OutcomePublisher) Close() error {
	return p.broker.Close()
}
