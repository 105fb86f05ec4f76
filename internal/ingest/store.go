// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package ingest

import "context"

// BatchResult summarizes one import transaction.
type BatchResult struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// Repository is the storage contract of the ingestion domain.
type Repository interface {
	// ImportBatch upserts all records inside one transaction. Individual
	// record failures are tolerated up to the rollback threshold; beyond it
	// the whole batch rolls back with a batch-import error.
	ImportBatch(ctx context.Context, records []Record) (BatchResult, error)
}
