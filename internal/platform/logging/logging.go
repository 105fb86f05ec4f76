// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

// Package logging builds the process-wide structured logger.
//
// All output is JSON on stdout; when a log file is configured the stream is
// teed into a size-rotated file so long-running catalog nodes do not fill
// their disks.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation policy for the optional file sink.
const (
	maxSizeMB  = 100
	maxBackups = 5
	maxAgeDays = 30
)

// New constructs the root slog logger.
//
// # Parameters
//   - logFile: path for the rotated file sink; empty disables it.
//   - debug: lowers the level to Debug.
func New(logFile string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var sink io.Writer = os.Stdout
	if logFile != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		})
	}

	return slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level}))
}
