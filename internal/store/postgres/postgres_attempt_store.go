package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"assetprocessor/internal/models"
	"assetprocessor/internal/state"
)

type PostgresAttemptStore struct {
	db *sql.DB
}

func NewPostgresAttemptStore(db *sql.DB) *PostgresAttemptStore {
	return &PostgresAttemptStore{db: db}
}

func (s *PostgresAttemptStore) RecordAttempt(ctx context.Context, a models.Attempt) error {
	query := `
		INSERT INTO assetprocessor_schema.job_attempts
			(run_id, job_id, asset_id, file_type, status, failure_kind, error_message,
			 chunk_count, token_count, attempt, worker_id, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		a.RunID, a.JobID, a.AssetID, string(a.FileType), string(a.Status),
		nullString(a.FailureKind), nullString(a.ErrorMessage),
		a.ChunkCount, a.TokenCount, a.Attempt, a.WorkerID, a.StartedAt, a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt %s: %w", a.RunID, err)
	}
	return nil
}

func (s *PostgresAttemptStore) ListAttempts(ctx context.Context, jobID string, limit int) ([]models.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT run_id, job_id, asset_id, file_type, status, failure_kind, error_message,
		       chunk_count, token_count, attempt, worker_id, started_at, finished_at
		FROM assetprocessor_schema.job_attempts
		WHERE job_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var (
			a            models.Attempt
			fileType     string
			status       string
			failureKind  sql.NullString
			errorMessage sql.NullString
		)
		if err := rows.Scan(
			&a.RunID, &a.JobID, &a.AssetID, &fileType, &status, &failureKind, &errorMessage,
			&a.ChunkCount, &a.TokenCount, &a.Attempt, &a.WorkerID, &a.StartedAt, &a.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.FileType = models.FileType(fileType)
		a.Status = state.JobStatus(status)
		a.FailureKind = failureKind.String
		a.ErrorMessage = errorMessage.String
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *PostgresAttemptStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
