package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"assetprocessor/internal/constants"
	"assetprocessor/internal/models"
	"assetprocessor/internal/state"
)

// RedisAttemptStore keeps each job's attempts in two keys: a hash of run id to
// the JSON attempt, and a sorted set of run ids scored by start time.
type RedisAttemptStore struct {
	client *redis.Client
}

func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{client: client}
}

type attemptRecord struct {
	RunID        string    `json:"runId"`
	JobID        string    `json:"jobId"`
	AssetID      string    `json:"assetId"`
	FileType     string    `json:"fileType"`
	Status       string    `json:"status"`
	FailureKind  string    `json:"failureKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	ChunkCount   int       `json:"chunkCount"`
	TokenCount   int       `json:"tokenCount"`
	Attempt      int       `json:"attempt"`
	WorkerID     int       `json:"workerId"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

func toRecord(a models.Attempt) attemptRecord {
	return attemptRecord{
		RunID:        a.RunID,
		JobID:        a.JobID,
		AssetID:      a.AssetID,
		FileType:     string(a.FileType),
		Status:       string(a.Status),
		FailureKind:  a.FailureKind,
		ErrorMessage: a.ErrorMessage,
		ChunkCount:   a.ChunkCount,
		TokenCount:   a.TokenCount,
		Attempt:      a.Attempt,
		WorkerID:     a.WorkerID,
		StartedAt:    a.StartedAt,
		FinishedAt:   a.FinishedAt,
	}
}

func (r attemptRecord) toAttempt() models.Attempt {
	return models.Attempt{
		RunID:        r.RunID,
		JobID:        r.JobID,
		AssetID:      r.AssetID,
		FileType:     models.FileType(r.FileType),
		Status:       state.JobStatus(r.Status),
		FailureKind:  r.FailureKind,
		ErrorMessage: r.ErrorMessage,
		ChunkCount:   r.ChunkCount,
		TokenCount:   r.TokenCount,
		Attempt:      r.Attempt,
		WorkerID:     r.WorkerID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

func attemptsKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s:attempts", constants.LedgerKeyPrefix, jobID)
}

func runsKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s:runs", constants.LedgerKeyPrefix, jobID)
}

func (s *RedisAttemptStore) RecordAttempt(ctx context.Context, a models.Attempt) error {
	payload, err := json.Marshal(toRecord(a))
	if err != nil {
		return fmt.Errorf("failed to encode attempt %s: %w", a.RunID, err)
	}

	added, err := s.client.HSetNX(ctx, attemptsKey(a.JobID), a.RunID, string(payload)).Result()
	if err != nil {
		return fmt.Errorf("failed to record attempt %s: %w", a.RunID, err)
	}
	if !added {
		return nil
	}

	z := redis.Z{Score: float64(a.StartedAt.UnixMilli()), Member: a.RunID}
	if err := s.client.ZAddNX(ctx, runsKey(a.JobID), z).Err(); err != nil {
		return fmt.Errorf("failed to index attempt %s: %w", a.RunID, err)
	}
	return nil
}

func (s *RedisAttemptStore) ListAttempts(ctx context.Context, jobID string, limit int) ([]models.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	runIDs, err := s.client.ZRevRange(ctx, runsKey(jobID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	if len(runIDs) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, attemptsKey(jobID), runIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	attempts := make([]models.Attempt, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec attemptRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode attempt: %w", err)
		}
		attempts = append(attempts, rec.toAttempt())
	}
	return attempts, nil
}

func (s *RedisAttemptStore) Close() error {
	return s.client.Close()
}
