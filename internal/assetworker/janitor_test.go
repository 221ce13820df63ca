package assetworker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetprocessor/internal/logger"
	"assetprocessor/internal/media"
)

func TestJanitor_SweepRemovesOnlyOldScratchEntries(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	oldDir := filepath.Join(root, media.ScratchPrefix+"old")
	require.NoError(t, os.MkdirAll(filepath.Join(oldDir, "nested"), 0o755))
	require.NoError(t, os.Chtimes(oldDir, old, old))

	oldFile := filepath.Join(root, media.ScratchPrefix+"chunk.mp3")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(oldFile, old, old))

	freshDir := filepath.Join(root, media.ScratchPrefix+"fresh")
	require.NoError(t, os.Mkdir(freshDir, 0o755))

	foreign := filepath.Join(root, "other-tool")
	require.NoError(t, os.Mkdir(foreign, 0o755))
	require.NoError(t, os.Chtimes(foreign, old, old))

	j := NewJanitor(root, "@every 1h", time.Hour, logger.Discard())
	removed, err := j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoDirExists(t, oldDir)
	assert.NoFileExists(t, oldFile)
	assert.DirExists(t, freshDir)
	assert.DirExists(t, foreign)
}

func TestJanitor_SweepMissingRoot(t *testing.T) {
	j := NewJanitor(filepath.Join(t.TempDir(), "missing"), "@every 1h", time.Hour, logger.Discard())
	_, err := j.Sweep()
	assert.Error(t, err)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	j := NewJanitor(t.TempDir(), "@every 1h", time.Hour, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestJanitor_RunRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(t.TempDir(), "every now and then", time.Hour, logger.Discard())
	assert.Error(t, j.Run(context.Background()))
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.NoError(t, ValidateSchedule("@every 10m"))
	assert.Error(t, ValidateSchedule("*/15 * *"))
	assert.Error(t, ValidateSchedule(""))
}
