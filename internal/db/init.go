package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	_ "github.com/lib/pq"

	"assetprocessor/internal/constants"
	"assetprocessor/internal/lock"
)

//go:embed migrations/*.sql
var migrations embed.FS

const schema = constants.LedgerSchema

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, postgresURL string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return sqlDB, nil
}

// Init creates the ledger schema and runs the embedded migration scripts in
// name order. Concurrent processes serialize on an advisory lock, and every
// script is idempotent.
func Init(ctx context.Context, sqlDB *sql.DB, distributedLock lock.DistributedLockManager, logger *slog.Logger) error {
	if err := distributedLock.Acquire(ctx, constants.LedgerMigrationLock); err != nil {
		return err
	}
	defer func() {
		if err := distributedLock.Release(ctx, constants.LedgerMigrationLock); err != nil {
			logger.Warn("Failed to release migration lock", "error", err)
		}
	}()

	if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	scripts, err := readSQLScripts()
	if err != nil {
		return err
	}
	for _, script := range scripts {
		logger.Debug("Running migration", "script", script.name)
		if _, err := sqlDB.ExecContext(ctx, script.body); err != nil {
			return fmt.Errorf("migration %s: %w", script.name, err)
		}
	}
	return nil
}

type sqlScript struct {
	name string
	body string
}

func readSQLScripts() ([]sqlScript, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, err
	}

	var scripts []sqlScript
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := fs.ReadFile(migrations, "migrations/"+entry.Name())
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, sqlScript{name: entry.Name(), body: string(content)})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].name < scripts[j].name })
	return scripts, nil
}
