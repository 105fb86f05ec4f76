// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/hep-fcc/datacat/internal/ingest"
	"github.com/hep-fcc/datacat/internal/platform/config"
	"github.com/hep-fcc/datacat/internal/platform/sec"
)

const (
	// defaultPollInterval is used when the settings leave it unset.
	defaultPollInterval = 30 * time.Second

	// debounceWindow absorbs the event bursts of a file still being written.
	debounceWindow = 2 * time.Second

	// flushInterval is how often due debounced paths are drained.
	flushInterval = 500 * time.Millisecond

	// startupScanParallelism bounds concurrent imports during the startup scan.
	startupScanParallelism = 4
)

// Importer is the slice of the ingestion service the watcher needs.
type Importer interface {
	Import(ctx context.Context, raw []byte) (ingest.BatchResult, error)
}

// Watcher turns filesystem changes under the configured directories into
// dictionary imports. One import failure never stops the watcher; the file
// is retried when it changes again.
type Watcher struct {
	settings config.FileWatcherSettings
	importer Importer
	state    *StateFile
	logger   *slog.Logger

	// pending maps a changed path to the moment it may be processed.
	pending map[string]time.Time
}

// New creates a watcher over the configured paths.
func New(settings config.FileWatcherSettings, importer Importer, logger *slog.Logger) *Watcher {
	return &Watcher{
		settings: settings,
		importer: importer,
		state:    NewStateFile(settings.StateFile),
		logger:   logger.With(slog.String("component", "watcher")),
		pending:  make(map[string]time.Time),
	}
}

// Run executes the startup scan and then watches until ctx is canceled.
func (watcher *Watcher) Run(ctx context.Context) error {
	if !watcher.settings.Enabled() {
		return nil
	}

	if err := watcher.state.Load(); err != nil {
		return err
	}

	if err := watcher.startupScan(ctx); err != nil {
		return err
	}

	return watcher.watch(ctx)
}

// # Startup Scan

// startupScan reconciles the files already on disk with the ledger,
// according to the configured startup mode.
func (watcher *Watcher) startupScan(ctx context.Context) error {
	files := watcher.listDictionaries()
	if len(files) == 0 {
		return nil
	}

	mode := watcher.settings.StartupMode
	watcher.logger.Info("startup_scan",
		slog.String("mode", mode),
		slog.Int("files", len(files)),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(startupScanParallelism)

	for _, path := range files {
		group.Go(func() error {
			switch mode {
			case config.StartupIgnore:
				// Snapshot only: current content counts as seen, so the
				// first post-startup change still triggers an import.
				watcher.snapshot(path)
			case config.StartupProcessAll:
				watcher.processFile(groupCtx, path, true)
			default: // config.StartupProcessNew
				watcher.processFile(groupCtx, path, false)
			}
			return groupCtx.Err()
		})
	}

	return group.Wait()
}

// snapshot records a file's current content as processed without importing.
func (watcher *Watcher) snapshot(path string) {
	payload, info, err := readWithInfo(path)
	if err != nil {
		watcher.logger.Warn("snapshot_failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if err := watcher.state.MarkProcessed(path, sec.Fingerprint(payload), info.ModTime()); err != nil {
		watcher.logger.Warn("state_write_failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// # Event Loop

// watch runs the combined fsnotify / polling loop. A broken notifier
// degrades to polling only.
func (watcher *Watcher) watch(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		watcher.logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		notifier = nil
	}
	if notifier != nil {
		defer notifier.Close()
		for _, path := range watcher.settings.WatchPaths {
			if err := notifier.Add(path); err != nil {
				watcher.logger.Warn("watch_add_failed", slog.String("path", path), slog.String("error", err.Error()))
			}
		}
	}

	pollInterval := watcher.settings.PollingInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	flushTicker := time.NewTicker(flushInterval)
	defer flushTicker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if notifier != nil {
		events = notifier.Events
		errs = notifier.Errors
	}

	watcher.logger.Info("watching",
		slog.Any("paths", watcher.settings.WatchPaths),
		slog.Duration("poll_interval", pollInterval),
	)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isDictionary(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Chmod) != 0 {
				watcher.schedule(event.Name)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			watcher.logger.Warn("fsnotify_error", slog.String("error", err.Error()))

		case <-flushTicker.C:
			watcher.flushDue(ctx)

		case <-pollTicker.C:
			// Catch events the notifier missed: every known file whose
			// content differs from the ledger gets scheduled.
			for _, path := range watcher.listDictionaries() {
				watcher.schedule(path)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// schedule (re)arms the debounce deadline for a changed path.
func (watcher *Watcher) schedule(path string) {
	watcher.pending[path] = time.Now().Add(debounceWindow)
}

// flushDue processes every pending path whose debounce window has passed.
func (watcher *Watcher) flushDue(ctx context.Context) {
	now := time.Now()
	for path, due := range watcher.pending {
		if now.Before(due) {
			continue
		}
		delete(watcher.pending, path)
		watcher.processFile(ctx, path, false)
	}
}

// # File Processing

// processFile imports one dictionary file. Unless force is set, content
// already recorded in the ledger is skipped.
func (watcher *Watcher) processFile(ctx context.Context, path string, force bool) {
	payload, info, err := readWithInfo(path)
	if err != nil {
		// Deleted between event and read, or transiently unreadable.
		watcher.logger.Warn("dictionary_unreadable", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	fingerprint := sec.Fingerprint(payload)
	if !force && watcher.state.Seen(path, fingerprint) {
		return
	}

	result, err := watcher.importer.Import(ctx, payload)
	if err != nil {
		watcher.logger.Error("dictionary_import_failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	watcher.logger.Info("dictionary_imported",
		slog.String("path", path),
		slog.Int("imported", result.Imported),
		slog.Int("failed", result.Failed),
	)

	if err := watcher.state.MarkProcessed(path, fingerprint, info.ModTime()); err != nil {
		watcher.logger.Warn("state_write_failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// listDictionaries returns every dictionary file under the watched paths.
// A watched path may be a directory or a single file.
func (watcher *Watcher) listDictionaries() []string {
	var files []string

	for _, root := range watcher.settings.WatchPaths {
		info, err := os.Stat(root)
		if err != nil {
			watcher.logger.Warn("watch_path_unavailable", slog.String("path", root), slog.String("error", err.Error()))
			continue
		}

		if !info.IsDir() {
			if isDictionary(root) {
				files = append(files, root)
			}
			continue
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			watcher.logger.Warn("watch_path_unreadable", slog.String("path", root), slog.String("error", err.Error()))
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isDictionary(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(root, entry.Name()))
		}
	}

	return files
}

// isDictionary reports whether the path looks like a dictionary file.
func isDictionary(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// readWithInfo reads a file and stats it in one step.
func readWithInfo(path string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return payload, info, nil
}
