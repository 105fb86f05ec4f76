// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hep-fcc/datacat/internal/ingest"
)

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import dictionary files into the catalog",
		Long: `Import runs the dictionary ingestion pipeline against one or more
JSON files, using the same parsing, merge, and conflict handling as the
upload endpoint and the file watcher.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args)
		},
	}
}

func runImport(ctx context.Context, paths []string) error {
	setupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	env, err := setup(setupCtx)
	if err != nil {
		return err
	}
	defer env.close()

	repository := ingest.NewPostgresRepository(env.pool, env.inspector, env.log)
	service := ingest.NewService(repository, env.inspector, env.log)

	failures := 0
	for _, path := range paths {
		payload, err := os.ReadFile(path)
		if err != nil {
			env.log.Error("dictionary_unreadable", slog.String("path", path), slog.Any("error", err))
			failures++
			continue
		}

		result, err := service.Import(ctx, payload)
		if err != nil {
			env.log.Error("dictionary_import_failed", slog.String("path", path), slog.Any("error", err))
			failures++
			continue
		}

		fmt.Printf("%s: imported %d of %d records (%d failed)\n",
			path, result.Imported, result.Total, result.Failed)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed to import", failures, len(paths))
	}
	return nil
}
