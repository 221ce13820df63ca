package store

import (
	"context"

	"assetprocessor/internal/models"
)

// AttemptStore is the audit ledger of processing attempts. It is never read
// back to drive scheduling; the remote store stays the source of truth.
type AttemptStore interface {
	// RecordAttempt writes one finished run. Writing the same run id twice is a no-op.
	RecordAttempt(ctx context.Context, attempt models.Attempt) error

	// ListAttempts returns the most recent runs of a job, newest first.
	ListAttempts(ctx context.Context, jobID string, limit int) ([]models.Attempt, error)

	// Close closes the database
	Close() error
}

// NopAttemptStore is used when no ledger database is configured.
type NopAttemptStore struct{}

func (NopAttemptStore) RecordAttempt(context.Context, models.Attempt) error { return nil }

func (NopAttemptStore) ListAttempts(context.Context, string, int) ([]models.Attempt, error) {
	return nil, nil
}

func (NopAttemptStore) Close() error { return nil }
