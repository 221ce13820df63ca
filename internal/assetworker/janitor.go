package assetworker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"assetprocessor/internal/media"
)

// Janitor periodically removes scratch entries left behind by a crashed
// process. Live entries are always younger than maxAge in practice, since
// every job removes its own scratch space before finishing.
type Janitor struct {
	root     string
	schedule string
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewJanitor(root, schedule string, maxAge time.Duration, logger *slog.Logger) *Janitor {
	if root == "" {
		root = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		root:     root,
		schedule: schedule,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

// Sweep removes every scratch entry under root older than maxAge.
func (j *Janitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.root)
	if err != nil {
		return 0, err
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), media.ScratchPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn("Failed to remove orphaned scratch entry", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Run sweeps on the cron schedule until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() {
		removed, err := j.Sweep()
		if err != nil {
			j.logger.Error("Scratch sweep failed", "root", j.root, "error", err)
			return
		}
		if removed > 0 {
			j.logger.Info("Removed orphaned scratch entries", "count", removed)
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ValidateSchedule reports whether schedule is a cron line the janitor accepts.
func ValidateSchedule(schedule string) error {
	_, err := cron.ParseStandard(schedule)
	return err
}
