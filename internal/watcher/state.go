// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package watcher ingests dictionary files dropped into watched directories.

It combines filesystem notifications with a periodic rescan, so a missed
event (NFS, container bind mounts) only delays an import until the next
polling tick. Processed files are remembered by content fingerprint in a
state ledger, which makes imports idempotent across restarts.
*/
package watcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileState records one processed dictionary file.
type FileState struct {
	Fingerprint string    `json:"fingerprint"`
	ModTime     time.Time `json:"mod_time"`
	ProcessedAt time.Time `json:"processed_at"`
}

// StateFile is the persistent ledger of processed files.
//
// The on-disk JSON document is guarded by an advisory file lock, so two
// server instances sharing a state file (or a server racing the import
// CLI) cannot interleave partial writes. An empty path keeps the ledger
// in memory only.
type StateFile struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	entries map[string]FileState
}

// NewStateFile creates a ledger backed by the given path.
func NewStateFile(path string) *StateFile {
	state := &StateFile{
		path:    path,
		entries: make(map[string]FileState),
	}
	if path != "" {
		state.lock = flock.New(path + ".lock")
	}
	return state
}

// Load reads the ledger from disk. A missing file is an empty ledger.
func (state *StateFile) Load() error {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.path == "" {
		return nil
	}

	if err := state.lock.Lock(); err != nil {
		return fmt.Errorf("watcher: failed to lock state file: %w", err)
	}
	defer func() { _ = state.lock.Unlock() }()

	payload, err := os.ReadFile(state.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("watcher: failed to read state file: %w", err)
	}

	entries := make(map[string]FileState)
	if err := json.Unmarshal(payload, &entries); err != nil {
		return fmt.Errorf("watcher: state file %s is corrupt: %w", state.path, err)
	}

	state.entries = entries
	return nil
}

// Seen reports whether a file with this exact content was already processed.
func (state *StateFile) Seen(path, fingerprint string) bool {
	state.mu.Lock()
	defer state.mu.Unlock()

	entry, ok := state.entries[path]
	return ok && entry.Fingerprint == fingerprint
}

// MarkProcessed records a file as processed and persists the ledger.
func (state *StateFile) MarkProcessed(path, fingerprint string, modTime time.Time) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.entries[path] = FileState{
		Fingerprint: fingerprint,
		ModTime:     modTime,
		ProcessedAt: time.Now().UTC(),
	}

	return state.save()
}

// save writes the ledger atomically: temp file in the same directory,
// then rename. Caller holds state.mu.
func (state *StateFile) save() error {
	if state.path == "" {
		return nil
	}

	if err := state.lock.Lock(); err != nil {
		return fmt.Errorf("watcher: failed to lock state file: %w", err)
	}
	defer func() { _ = state.lock.Unlock() }()

	payload, err := json.MarshalIndent(state.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("watcher: failed to encode state: %w", err)
	}

	directory := filepath.Dir(state.path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("watcher: failed to create state directory: %w", err)
	}

	temp, err := os.CreateTemp(directory, ".datacat-state-*")
	if err != nil {
		return fmt.Errorf("watcher: failed to create temp state file: %w", err)
	}

	if _, err := temp.Write(payload); err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("watcher: failed to write state: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(temp.Name())
		return fmt.Errorf("watcher: failed to close temp state file: %w", err)
	}

	if err := os.Rename(temp.Name(), state.path); err != nil {
		_ = os.Remove(temp.Name())
		return fmt.Errorf("watcher: failed to replace state file: %w", err)
	}
	return nil
}
