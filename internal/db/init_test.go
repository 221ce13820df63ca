package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetprocessor/internal/constants"
	"assetprocessor/internal/lock"
	"assetprocessor/internal/logger"
)

type mockLockManager struct {
	acquireErr error
	releaseErr error
	acquired   []int64
	released   []int64
}

func (m *mockLockManager) Acquire(ctx context.Context, lockID int64) error {
	m.acquired = append(m.acquired, lockID)
	return m.acquireErr
}

func (m *mockLockManager) Release(ctx context.Context, lockID int64) error {
	m.released = append(m.released, lockID)
	return m.releaseErr
}

var _ lock.DistributedLockManager = (*mockLockManager)(nil)

func TestReadSQLScripts(t *testing.T) {
	scripts, err := readSQLScripts()
	require.NoError(t, err)
	require.NotEmpty(t, scripts)
	assert.Equal(t, "001_job_attempts.sql", scripts[0].name)
	assert.Contains(t, scripts[0].body, "assetprocessor_schema.job_attempts")
}

func TestInit_RunsMigrationsUnderLock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS assetprocessor_schema").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS assetprocessor_schema.job_attempts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	lockMgr := &mockLockManager{}
	err = Init(context.Background(), sqlDB, lockMgr, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, []int64{constants.LedgerMigrationLock}, lockMgr.acquired)
	assert.Equal(t, []int64{constants.LedgerMigrationLock}, lockMgr.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_LockAcquireFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	lockMgr := &mockLockManager{acquireErr: errors.New("lock busy")}
	err = Init(context.Background(), sqlDB, lockMgr, logger.Discard())
	assert.EqualError(t, err, "lock busy")
	assert.Empty(t, lockMgr.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_SchemaFailureReleasesLock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE SCHEMA").WillReturnError(errors.New("permission denied"))

	lockMgr := &mockLockManager{}
	err = Init(context.Background(), sqlDB, lockMgr, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Len(t, lockMgr.released, 1)
}
