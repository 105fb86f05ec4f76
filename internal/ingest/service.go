// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package ingest

import (
	"context"
	"log/slog"

	"github.com/hep-fcc/datacat/internal/schema"
)

type Service struct {
	repo      Repository
	inspector *schema.Inspector
	logger    *slog.Logger
}

func NewService(repo Repository, inspector *schema.Inspector, logger *slog.Logger) *Service {
	return &Service{repo: repo, inspector: inspector, logger: logger}
}

// Import parses a dictionary document and runs the batch upsert. On success
// the cached schema analysis is invalidated so metadata keys introduced by
// this batch become searchable without a restart.
func (service *Service) Import(ctx context.Context, raw []byte) (BatchResult, error) {
	records, err := ParseDocument(raw)
	if err != nil {
		return BatchResult{}, err
	}

	result, err := service.repo.ImportBatch(ctx, records)
	if err != nil {
		return result, err
	}

	service.inspector.Invalidate()

	service.logger.Info("dictionary_imported",
		slog.Int("total", result.Total),
		slog.Int("imported", result.Imported),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
