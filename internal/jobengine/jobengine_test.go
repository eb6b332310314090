package jobengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torvald-bar/bargo/internal/barlog"
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/jobconfig"
)

func testLogger() *barlog.Logger { return barlog.New(barlog.LevelError, os.Stderr) }

func newTestJob(t *testing.T) *jobconfig.Job {
	t.Helper()
	job := jobconfig.NewJob("nightly")
	job.ArchiveName = "nightly"
	job.Destination = t.TempDir()
	return job
}

func TestJobNodeTriggerStartEnd(t *testing.T) {
	node := NewJobNode(newTestJob(t), "/tmp/nightly.bar", time.Now())
	assert.Equal(t, StateNone, node.State())

	now := time.Now()
	require.NoError(t, node.Trigger("sched-1", "", catalog.ArchiveTypeFull, false, false, "test", now))
	assert.Equal(t, StateWaiting, node.State())

	require.NoError(t, node.Start())
	assert.Equal(t, StateRunning, node.State())

	state := node.End(nil)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, StateDone, node.State())
}

func TestJobNodeEndWithErrorAndAbort(t *testing.T) {
	node := NewJobNode(newTestJob(t), "/tmp/nightly.bar", time.Now())
	require.NoError(t, node.Trigger("", "", catalog.ArchiveTypeNormal, false, false, "test", time.Now()))
	require.NoError(t, node.Start())

	require.NoError(t, node.Abort())
	assert.True(t, node.PendingAbort())

	state := node.End(nil)
	assert.Equal(t, StateAborted, state)

	// A fresh run that fails without abort ends in ERROR.
	require.NoError(t, node.Reset())
	require.NoError(t, node.Trigger("", "", catalog.ArchiveTypeNormal, false, false, "test", time.Now()))
	require.NoError(t, node.Start())
	state = node.End(assertError{})
	assert.Equal(t, StateError, state)
	assert.NotEmpty(t, node.Running.LastError)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestJobNodeResetRejectedWhileActive(t *testing.T) {
	node := NewJobNode(newTestJob(t), "/tmp/nightly.bar", time.Now())
	require.NoError(t, node.Trigger("", "", catalog.ArchiveTypeNormal, false, false, "test", time.Now()))

	err := node.Reset()
	assert.ErrorIs(t, err, ErrActive)
}

func TestJobNodeAbortWhileWaitingReturnsToNone(t *testing.T) {
	node := NewJobNode(newTestJob(t), "/tmp/nightly.bar", time.Now())
	require.NoError(t, node.Trigger("", "", catalog.ArchiveTypeNormal, false, false, "test", time.Now()))
	require.NoError(t, node.Abort())
	assert.Equal(t, StateNone, node.State())
}

func writeJobFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestEngineSyncAndRemoveJobFile(t *testing.T) {
	dir := t.TempDir()
	body := "archive-name = nightly\narchive-type = full\ndestination = /backups/nightly\n"
	path := writeJobFile(t, dir, "nightly.bar", body)

	engine := NewEngine(testLogger())
	info, err := os.Stat(path)
	require.NoError(t, err)

	engine.syncJobFile(path, info.ModTime())
	jobs := engine.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "nightly", jobs[0].Config.ArchiveName)

	engine.removeMissing(map[string]bool{})
	assert.Empty(t, engine.Jobs())
}

func TestEngineRemoveMissingKeepsActiveJob(t *testing.T) {
	dir := t.TempDir()
	path := writeJobFile(t, dir, "nightly.bar", "archive-name = nightly\n")

	engine := NewEngine(testLogger())
	info, err := os.Stat(path)
	require.NoError(t, err)
	engine.syncJobFile(path, info.ModTime())

	node := engine.Jobs()[0]
	require.NoError(t, node.Trigger("", "", catalog.ArchiveTypeNormal, false, false, "test", time.Now()))

	engine.removeMissing(map[string]bool{})
	assert.Len(t, engine.Jobs(), 1, "active job must survive removal from disk")
}

func TestWatcherDiscoversJobFile(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine(testLogger())
	writeJobFile(t, dir, "weekly.bar", "archive-name = weekly\n")

	w := NewWatcher(dir, engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	require.Len(t, engine.Jobs(), 1)
	assert.Equal(t, "weekly", engine.Jobs()[0].Config.ArchiveName)
}

func TestEnginePausedSkipsScheduler(t *testing.T) {
	engine := NewEngine(testLogger())
	engine.SetPaused(true)
	assert.True(t, engine.isPaused())
	// schedulerTick should return immediately without panicking on an empty
	// job list while paused.
	engine.schedulerTick(context.Background())
}
