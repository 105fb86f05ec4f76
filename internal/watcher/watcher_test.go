// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hep-fcc/datacat/internal/ingest"
	"github.com/hep-fcc/datacat/internal/platform/config"
)

// stubImporter records import calls; the mutex covers the parallel
// startup scan.
type stubImporter struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (importer *stubImporter) Import(_ context.Context, raw []byte) (ingest.BatchResult, error) {
	importer.mu.Lock()
	defer importer.mu.Unlock()

	importer.calls = append(importer.calls, string(raw))
	if importer.fail {
		return ingest.BatchResult{}, assert.AnError
	}
	return ingest.BatchResult{Total: 1, Imported: 1}, nil
}

func testWatcher(t *testing.T, settings config.FileWatcherSettings, importer Importer) *Watcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(settings, importer, logger)
}

func TestStateFile_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "watcher.json")

	state := NewStateFile(path)
	require.NoError(t, state.Load())
	require.NoError(t, state.MarkProcessed("/data/dict.json", "abc123", time.Now()))

	assert.True(t, state.Seen("/data/dict.json", "abc123"))
	assert.False(t, state.Seen("/data/dict.json", "different"))
	assert.False(t, state.Seen("/data/other.json", "abc123"))

	// A fresh instance pointed at the same file sees the ledger.
	reloaded := NewStateFile(path)
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.Seen("/data/dict.json", "abc123"))
}

func TestStateFile_InMemory(t *testing.T) {
	state := NewStateFile("")
	require.NoError(t, state.Load())
	require.NoError(t, state.MarkProcessed("/data/dict.json", "abc123", time.Now()))
	assert.True(t, state.Seen("/data/dict.json", "abc123"))
}

func TestStateFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	state := NewStateFile(path)
	require.Error(t, state.Load())
}

func TestIsDictionary(t *testing.T) {
	assert.True(t, isDictionary("/drop/dict.json"))
	assert.True(t, isDictionary("/drop/DICT.JSON"))
	assert.False(t, isDictionary("/drop/dict.json.tmp"))
	assert.False(t, isDictionary("/drop/readme.md"))
}

func TestProcessFile_SkipsSeenContent(t *testing.T) {
	directory := t.TempDir()
	dictionary := filepath.Join(directory, "dict.json")
	require.NoError(t, os.WriteFile(dictionary, []byte(`{"processes":[]}`), 0o644))

	importer := &stubImporter{}
	watcher := testWatcher(t, config.FileWatcherSettings{WatchPaths: []string{directory}}, importer)
	require.NoError(t, watcher.state.Load())

	watcher.processFile(context.Background(), dictionary, false)
	watcher.processFile(context.Background(), dictionary, false)
	assert.Len(t, importer.calls, 1)

	// Changed content is processed again.
	require.NoError(t, os.WriteFile(dictionary, []byte(`{"processes":[{}]}`), 0o644))
	watcher.processFile(context.Background(), dictionary, false)
	assert.Len(t, importer.calls, 2)
}

func TestProcessFile_FailureLeavesFileRetriable(t *testing.T) {
	directory := t.TempDir()
	dictionary := filepath.Join(directory, "dict.json")
	require.NoError(t, os.WriteFile(dictionary, []byte(`{"processes":[]}`), 0o644))

	importer := &stubImporter{fail: true}
	watcher := testWatcher(t, config.FileWatcherSettings{WatchPaths: []string{directory}}, importer)
	require.NoError(t, watcher.state.Load())

	watcher.processFile(context.Background(), dictionary, false)
	require.Len(t, importer.calls, 1)

	// Not marked processed, so the same content is retried.
	importer.fail = false
	watcher.processFile(context.Background(), dictionary, false)
	assert.Len(t, importer.calls, 2)
}

func TestStartupScan_Ignore(t *testing.T) {
	directory := t.TempDir()
	dictionary := filepath.Join(directory, "dict.json")
	require.NoError(t, os.WriteFile(dictionary, []byte(`{"processes":[]}`), 0o644))

	importer := &stubImporter{}
	watcher := testWatcher(t, config.FileWatcherSettings{
		WatchPaths:  []string{directory},
		StartupMode: config.StartupIgnore,
	}, importer)
	require.NoError(t, watcher.state.Load())

	require.NoError(t, watcher.startupScan(context.Background()))
	assert.Empty(t, importer.calls)

	// The snapshot counts as seen, so an unchanged file stays skipped.
	watcher.processFile(context.Background(), dictionary, false)
	assert.Empty(t, importer.calls)
}

func TestStartupScan_ProcessAll(t *testing.T) {
	directory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(directory, "a.json"), []byte(`{"processes":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(directory, "b.json"), []byte(`{"processes":[{}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(directory, "notes.txt"), []byte("skip"), 0o644))

	importer := &stubImporter{}
	watcher := testWatcher(t, config.FileWatcherSettings{
		WatchPaths:  []string{directory},
		StartupMode: config.StartupProcessAll,
	}, importer)
	require.NoError(t, watcher.state.Load())

	require.NoError(t, watcher.startupScan(context.Background()))
	assert.Len(t, importer.calls, 2)
}
